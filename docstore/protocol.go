package docstore

// FrameOp is the operation carried by a relay websocket frame.
type FrameOp string

const (
	FrameGet      FrameOp = "get"
	FrameSet      FrameOp = "set"
	FrameQuery    FrameOp = "query"
	FrameWatch    FrameOp = "watch"
	FrameUnwatch  FrameOp = "unwatch"
	FrameResult   FrameOp = "result"
	FrameSnapshot FrameOp = "snapshot"
)

// CodeNotFound is the Frame.Code the relay answers with when a Get misses.
const CodeNotFound = "not_found"

// Frame is the single message shape exchanged with the relay. Requests carry
// a ReqID echoed back by exactly one result frame; snapshot frames carry the
// SubID of the watch they belong to.
type Frame struct {
	Op         FrameOp `json:"op"`
	ReqID      string  `json:"reqId,omitempty"`
	SubID      string  `json:"subId,omitempty"`
	Collection string  `json:"collection,omitempty"`
	ID         string  `json:"id,omitempty"`
	Doc        Doc     `json:"doc,omitempty"`
	Merge      bool    `json:"merge,omitempty"`
	Query      *Query  `json:"query,omitempty"`
	Docs       []Doc   `json:"docs,omitempty"`
	Error      string  `json:"error,omitempty"`
	Code       string  `json:"code,omitempty"`
}
