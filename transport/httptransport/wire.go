package httptransport

import (
	"github.com/alvintu/swift-ui-aws-amplify/cursor"
	"github.com/alvintu/swift-ui-aws-amplify/datastore"
	"github.com/alvintu/swift-ui-aws-amplify/engine"
)

// wireRecord is the JSON form of a datastore.Record.
type wireRecord struct {
	ID     string         `json:"id"`
	Model  string         `json:"model"`
	Fields map[string]any `json:"fields,omitempty"`
}

// wireChange is the JSON form of an engine.Change.
type wireChange struct {
	Record wireRecord `json:"record"`
	Op     string     `json:"op"`
}

// wireConflict is the JSON form of an engine.RemoteConflict.
type wireConflict struct {
	Local  wireChange `json:"local"`
	Remote wireRecord `json:"remote"`
}

type pushRequest struct {
	Changes []wireChange `json:"changes"`
}

type pushResponse struct {
	Accepted  []string       `json:"accepted"`
	Conflicts []wireConflict `json:"conflicts,omitempty"`
}

type pullRequest struct {
	// Since is the cursor to resume from. Absent for a base query.
	Since *cursor.WireCursor `json:"since,omitempty"`
	Limit int                `json:"limit"`
}

type pullResponse struct {
	Records []wireRecord       `json:"records"`
	Next    *cursor.WireCursor `json:"next,omitempty"`
	HasMore bool               `json:"has_more"`
}

func toWireRecord(r datastore.Record) wireRecord {
	return wireRecord{ID: r.ID(), Model: r.Model(), Fields: r.Fields()}
}

func fromWireRecord(wr wireRecord) datastore.Record {
	return datastore.NewRecordWithID(wr.Model, wr.ID, wr.Fields)
}

func toWireChange(ch engine.Change) wireChange {
	return wireChange{Record: toWireRecord(ch.Record), Op: string(ch.Op)}
}

func fromWireChange(wc wireChange) engine.Change {
	return engine.Change{Record: fromWireRecord(wc.Record), Op: engine.ChangeOp(wc.Op)}
}

func toWireConflict(rc engine.RemoteConflict) wireConflict {
	return wireConflict{Local: toWireChange(rc.Local), Remote: toWireRecord(rc.Remote)}
}

func fromWireConflict(wc wireConflict) engine.RemoteConflict {
	return engine.RemoteConflict{Local: fromWireChange(wc.Local), Remote: fromWireRecord(wc.Remote)}
}
