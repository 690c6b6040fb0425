package mavlink

import "encoding/binary"

type parserState int

const (
	stateSeekMagic parserState = iota
	stateReadHeader
	stateReadPayload
	stateReadChecksum
	stateReadSignature
)

// ParserStats counts what the parser consumed and discarded.
type ParserStats struct {
	Frames          uint64
	BadCRC          uint64
	UnknownCRCExtra uint64
	Malformed       uint64
	JunkBytes       uint64
	Signed          uint64
}

// Dropped is the number of candidate frames discarded after a magic byte.
func (s ParserStats) Dropped() uint64 {
	return s.BadCRC + s.UnknownCRCExtra + s.Malformed
}

// Parser reconstructs frames from an arbitrarily chunked byte stream. It keeps
// partial frames across Feed calls and is not safe for concurrent use.
type Parser struct {
	pending    []byte
	state      parserState
	payloadLen int
	stats      ParserStats
}

func NewParser() *Parser {
	return &Parser{pending: make([]byte, 0, headerLenV2+MaxPayloadLen+checksumLen+SignatureLen)}
}

func (p *Parser) Stats() ParserStats {
	return p.stats
}

// Buffered returns the number of bytes held for an incomplete frame.
func (p *Parser) Buffered() int {
	return len(p.pending)
}

// Reset drops any partial frame. Counters are kept.
func (p *Parser) Reset() {
	p.pending = p.pending[:0]
	p.state = stateSeekMagic
	p.payloadLen = 0
}

// Feed consumes chunk and returns every frame completed by it, in order.
func (p *Parser) Feed(chunk []byte) []Frame {
	p.pending = append(p.pending, chunk...)

	var frames []Frame
	for {
		switch p.state {
		case stateSeekMagic:
			i := indexMagic(p.pending)
			if i < 0 {
				p.stats.JunkBytes += uint64(len(p.pending))
				p.pending = p.pending[:0]

				return frames
			}
			p.stats.JunkBytes += uint64(i)
			p.consume(i)
			p.state = stateReadHeader

		case stateReadHeader:
			if len(p.pending) < headerLen(p.pending[0]) {
				return frames
			}
			if p.pending[0] == MagicV2 && p.pending[2]&^IncompatFlagSigned != 0 {
				p.stats.Malformed++
				p.rescan()

				continue
			}
			p.payloadLen = int(p.pending[1])
			p.state = stateReadPayload

		case stateReadPayload:
			if len(p.pending) < headerLen(p.pending[0])+p.payloadLen {
				return frames
			}
			p.state = stateReadChecksum

		case stateReadChecksum:
			end := headerLen(p.pending[0]) + p.payloadLen + checksumLen
			if len(p.pending) < end {
				return frames
			}
			if !p.verify() {
				p.rescan()

				continue
			}
			if p.pending[0] == MagicV2 && p.pending[2]&IncompatFlagSigned != 0 {
				p.state = stateReadSignature

				continue
			}
			frames = append(frames, p.emit(end))

		case stateReadSignature:
			end := headerLenV2 + p.payloadLen + checksumLen + SignatureLen
			if len(p.pending) < end {
				return frames
			}
			p.stats.Signed++
			frames = append(frames, p.emit(end))
		}
	}
}

func (p *Parser) verify() bool {
	hl := headerLen(p.pending[0])
	msgID := p.messageID()
	extra, ok := CRCExtra(msgID)
	if !ok {
		p.stats.UnknownCRCExtra++

		return false
	}
	payload := p.pending[hl : hl+p.payloadLen]
	want := binary.LittleEndian.Uint16(p.pending[hl+p.payloadLen:])
	if Checksum(p.pending[1:hl], payload, extra) != want {
		p.stats.BadCRC++

		return false
	}

	return true
}

func (p *Parser) messageID() uint32 {
	if p.pending[0] == MagicV2 {
		return uint32(p.pending[7]) | uint32(p.pending[8])<<8 | uint32(p.pending[9])<<16
	}

	return uint32(p.pending[5])
}

func (p *Parser) emit(end int) Frame {
	hl := headerLen(p.pending[0])
	f := Frame{
		MessageID: p.messageID(),
		Payload:   append([]byte(nil), p.pending[hl:hl+p.payloadLen]...),
		Checksum:  binary.LittleEndian.Uint16(p.pending[hl+p.payloadLen:]),
	}
	if p.pending[0] == MagicV2 {
		f.Version = V2
		f.IncompatFlags = p.pending[2]
		f.CompatFlags = p.pending[3]
		f.Sequence = p.pending[4]
		f.SystemID = p.pending[5]
		f.ComponentID = p.pending[6]
		if f.IncompatFlags&IncompatFlagSigned != 0 {
			sigStart := hl + p.payloadLen + checksumLen
			f.Signature = append([]byte(nil), p.pending[sigStart:sigStart+SignatureLen]...)
		}
	} else {
		f.Version = V1
		f.Sequence = p.pending[2]
		f.SystemID = p.pending[3]
		f.ComponentID = p.pending[4]
	}

	p.stats.Frames++
	p.consume(end)
	p.state = stateSeekMagic

	return f
}

// rescan drops only the magic of a rejected candidate so that a real frame
// starting inside it is still found.
func (p *Parser) rescan() {
	p.consume(1)
	p.state = stateSeekMagic
}

func (p *Parser) consume(n int) {
	p.pending = p.pending[n:]
}

func indexMagic(buf []byte) int {
	for i, b := range buf {
		if isMagic(b) {
			return i
		}
	}

	return -1
}
