package client

// State is the stage of the connection's request-response cycle.
type State uint8

const (
	// StateRequest reads and parses requests into the queue.
	StateRequest State = iota
	// StatePushRequest picks the first response stage for the head of the queue.
	StatePushRequest
	// StateParser1 calls the connector for the first time.
	StateParser1
	// StateResponseHeader writes the status line and the headers.
	StateResponseHeader
	// StateParser2 calls the bound connector for more content.
	StateParser2
	// StateResponseContent writes the content produced so far.
	StateResponseContent
	// StateParserError turns the response into an error one.
	StateParserError
	// StateComplete decides whether the connection is kept.
	StateComplete
	// StateStopped is terminal. The connection is torn down already.
	StateStopped
)

func (s State) String() string {
	names := [...]string{
		StateRequest:         "REQUEST",
		StatePushRequest:     "PUSHREQUEST",
		StateParser1:         "PARSER1",
		StateResponseHeader:  "RESPONSEHEADER",
		StateParser2:         "PARSER2",
		StateResponseContent: "RESPONSECONTENT",
		StateParserError:     "PARSERERROR",
		StateComplete:        "COMPLETE",
		StateStopped:         "STOPPED",
	}

	if int(s) >= len(names) {
		return "UNKNOWN"
	}

	return names[s]
}
