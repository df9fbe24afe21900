// Package proto implements the line-oriented ASCII datagram codec shared by
// every protocol layer: a fixed-capacity serializer/deserializer pair and
// the closed error taxonomy they report through.
package proto

// Error is the closed set of protocol-level failures. It implements the
// standard error interface so callers can use it with errors.Is/As like
// any other Go error, but it round-trips through the wire exactly like the
// bridge's own ErrorKind enum.
type Error uint8

const (
	SerializeError Error = iota
	ParseError
	EndNotFound
	BufIsFull
	BufIsEmpty
	MagicNotFound
	NoBeginFound
	NotSupported
	UnknownCommand
	UnknownError
)

var errorNames = [...][]byte{
	SerializeError: []byte("SerializeError"),
	ParseError:     []byte("ParseError"),
	EndNotFound:    []byte("EndNotFound"),
	BufIsFull:      []byte("BufIsFull"),
	BufIsEmpty:     []byte("BufIsEmpty"),
	MagicNotFound:  []byte("MagicNotFound"),
	NoBeginFound:   []byte("NoBeginFound"),
	NotSupported:   []byte("NotSupported"),
	UnknownCommand: []byte("UnknownCommand"),
	UnknownError:   []byte("UnknownError"),
}

func (e Error) Error() string { return string(e.AsBytes()) }

// AsBytes returns the wire name for e.
func (e Error) AsBytes() []byte {
	if int(e) < len(errorNames) {
		return errorNames[e]
	}
	return errorNames[UnknownError]
}

// ErrorFromBytes maps a wire error name to its Error value. This parse path
// is total: any unrecognized name becomes UnknownError rather than failing,
// matching the wire contract for inbound $err datagrams.
func ErrorFromBytes(b []byte) Error {
	for kind, name := range errorNames {
		if kind == int(UnknownError) {
			continue
		}
		if string(b) == string(name) {
			return Error(kind)
		}
	}
	return UnknownError
}
