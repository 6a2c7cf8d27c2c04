package flight

import (
	"errors"
	"time"

	"github.com/specialistvlad/stagecheck/internal/segment"
	"github.com/specialistvlad/stagecheck/internal/stage"
	"github.com/specialistvlad/stagecheck/internal/view"
)

// ErrConnectionClosed rejects references still pending when a stream ends.
var ErrConnectionClosed = errors.New("flight: connection closed")

const (
	wireElement uint8 = iota + 1
	wireText
	wireFragment
	wireSuspense
	wireSlot
	wireRef
	wireError
)

type wireNode struct {
	K uint8       `msgpack:"k"`
	N string      `msgpack:"n,omitempty"`
	T string      `msgpack:"t,omitempty"`
	M string      `msgpack:"m,omitempty"`
	C []*wireNode `msgpack:"c,omitempty"`
	F *wireNode   `msgpack:"f,omitempty"`
	R int         `msgpack:"r,omitempty"`
	D string      `msgpack:"d,omitempty"`
}

type wireParam struct {
	Name  string `msgpack:"n"`
	Value string `msgpack:"v"`
	Kind  string `msgpack:"k"`
}

type wireSegment struct {
	Name  string     `msgpack:"n"`
	Param *wireParam `msgpack:"p,omitempty"`
}

type wireSeedSlot struct {
	Key  string    `msgpack:"k"`
	Seed *wireSeed `msgpack:"s"`
}

type wireSeed struct {
	Segment         wireSegment    `msgpack:"s"`
	Node            *wireNode      `msgpack:"n"`
	Slots           []wireSeedSlot `msgpack:"c,omitempty"`
	Loading         *wireNode      `msgpack:"l,omitempty"`
	Partial         bool           `msgpack:"p,omitempty"`
	RuntimePrefetch bool           `msgpack:"r,omitempty"`
}

type wirePayload struct {
	Seed *wireSeed `msgpack:"s"`
	Head *wireNode `msgpack:"h,omitempty"`
}

type wireSegmentData struct {
	Node            *wireNode `msgpack:"n"`
	Loading         *wireNode `msgpack:"l,omitempty"`
	Partial         bool      `msgpack:"p,omitempty"`
	RuntimePrefetch bool      `msgpack:"r,omitempty"`
}

type wireRow struct {
	ID      int              `msgpack:"i"`
	Payload *wirePayload     `msgpack:"p,omitempty"`
	Segment *wireSegmentData `msgpack:"s,omitempty"`
	Node    *wireNode        `msgpack:"n,omitempty"`
	Failed  bool             `msgpack:"e,omitempty"`
	Digest  string           `msgpack:"d,omitempty"`
}

type wireDebug struct {
	ID     int      `msgpack:"i"`
	Site   string   `msgpack:"s,omitempty"`
	Stack  []string `msgpack:"o,omitempty"`
	Sync   bool     `msgpack:"y,omitempty"`
	Digest string   `msgpack:"d,omitempty"`
	Env    string   `msgpack:"e,omitempty"`
	At     int64    `msgpack:"t"`
	Stage  uint8    `msgpack:"g"`
}

func toWireSegment(s segment.Segment) wireSegment {
	w := wireSegment{Name: s.Name}
	if s.Param != nil {
		w.Param = &wireParam{Name: s.Param.Name, Value: s.Param.Value, Kind: s.Param.Kind}
	}
	return w
}

func (w wireSegment) segment() segment.Segment {
	s := segment.Segment{Name: w.Name}
	if w.Param != nil {
		s.Param = &segment.Param{Name: w.Param.Name, Value: w.Param.Value, Kind: w.Param.Kind}
	}
	return s
}

func (w *wireDebug) info() *view.DebugInfo {
	return &view.DebugInfo{
		Site:        w.Site,
		Stack:       w.Stack,
		Sync:        w.Sync,
		Digest:      w.Digest,
		Environment: w.Env,
		At:          time.Unix(0, w.At),
		Stage:       stage.Stage(w.Stage),
	}
}
