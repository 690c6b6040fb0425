package mavlink

import (
	"bytes"
	"math/rand"
	"reflect"
	"testing"
)

func collect(p *Parser, chunks ...[]byte) []Frame {
	var out []Frame
	for _, c := range chunks {
		out = append(out, p.Feed(c)...)
	}

	return out
}

func TestParserRoundTripV2(t *testing.T) {
	enc := NewEncoder(V2, 1, 1)
	for _, msg := range sampleMessages() {
		raw := mustEncode(t, enc, msg)
		frames := NewParser().Feed(raw)
		if len(frames) != 1 {
			t.Fatalf("%s: expected one frame, got %d", msg.MessageName(), len(frames))
		}
		f := frames[0]
		if f.Version != V2 || f.SystemID != 1 || f.ComponentID != 1 || f.MessageID != msg.MessageID() {
			t.Fatalf("%s: unexpected header %+v", msg.MessageName(), f)
		}
		got, err := Decode(f)
		if err != nil {
			t.Fatalf("%s: decode: %v", msg.MessageName(), err)
		}
		if !reflect.DeepEqual(got, msg) {
			t.Fatalf("%s: round trip mismatch:\n got %#v\nwant %#v", msg.MessageName(), got, msg)
		}
	}
}

func TestParserRoundTripV1(t *testing.T) {
	enc := NewEncoder(V1, 42, 200)
	for _, msg := range sampleMessages() {
		def := messageDefs[msg.MessageID()]
		if def.minLen != def.maxLen {
			continue
		}
		raw := mustEncode(t, enc, msg)
		if raw[0] != MagicV1 {
			t.Fatalf("%s: expected v1 magic, got %#x", msg.MessageName(), raw[0])
		}
		frames := NewParser().Feed(raw)
		if len(frames) != 1 {
			t.Fatalf("%s: expected one frame, got %d", msg.MessageName(), len(frames))
		}
		if frames[0].Sender() != (Sender{SystemID: 42, ComponentID: 200}) {
			t.Fatalf("%s: unexpected sender %+v", msg.MessageName(), frames[0].Sender())
		}
		got, err := Decode(frames[0])
		if err != nil {
			t.Fatalf("%s: decode: %v", msg.MessageName(), err)
		}
		if !reflect.DeepEqual(got, msg) {
			t.Fatalf("%s: round trip mismatch:\n got %#v\nwant %#v", msg.MessageName(), got, msg)
		}
	}
}

func testStream(t *testing.T) []byte {
	t.Helper()

	v1 := NewEncoder(V1, 1, 1)
	v2 := NewEncoder(V2, 1, 1)
	rng := rand.New(rand.NewSource(7))

	var buf bytes.Buffer
	for i, msg := range sampleMessages() {
		junk := make([]byte, rng.Intn(16))
		for j := range junk {
			// keep the junk free of magic bytes so frame boundaries are unambiguous
			junk[j] = byte(rng.Intn(0xF0))
		}
		buf.Write(junk)
		enc := v2
		if i%3 == 0 {
			enc = v1
		}
		buf.Write(mustEncode(t, enc, msg))
	}

	return buf.Bytes()
}

func TestParserIsIndependentOfChunking(t *testing.T) {
	stream := testStream(t)

	whole := collect(NewParser(), stream)
	if len(whole) != len(sampleMessages()) {
		t.Fatalf("expected %d frames, got %d", len(sampleMessages()), len(whole))
	}

	byteWise := NewParser()
	var single []Frame
	for _, b := range stream {
		single = append(single, byteWise.Feed([]byte{b})...)
	}
	if !reflect.DeepEqual(whole, single) {
		t.Fatal("byte-by-byte feeding produced different frames")
	}

	rng := rand.New(rand.NewSource(99))
	for round := 0; round < 20; round++ {
		p := NewParser()
		var got []Frame
		rest := stream
		for len(rest) > 0 {
			n := 1 + rng.Intn(64)
			if n > len(rest) {
				n = len(rest)
			}
			got = append(got, p.Feed(rest[:n])...)
			rest = rest[n:]
		}
		if !reflect.DeepEqual(whole, got) {
			t.Fatalf("round %d: random chunking produced different frames", round)
		}
		if p.Buffered() != 0 {
			t.Fatalf("round %d: parser kept %d bytes", round, p.Buffered())
		}
	}
}

func TestParserMultipleFramesInOneChunk(t *testing.T) {
	enc := NewEncoder(V2, 1, 1)
	var chunk []byte
	for i := 0; i < 5; i++ {
		chunk = append(chunk, mustEncode(t, enc, Heartbeat{Type: MavTypeQuadrotor, MavlinkVersion: 3})...)
	}

	frames := NewParser().Feed(chunk)
	if len(frames) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Sequence != uint8(i) {
			t.Fatalf("frame %d has sequence %d", i, f.Sequence)
		}
	}
}

func TestParserHoldsTruncatedFrame(t *testing.T) {
	raw := mustEncode(t, NewEncoder(V2, 1, 1), Attitude{Roll: 0.5})
	p := NewParser()

	if frames := p.Feed(raw[:7]); len(frames) != 0 {
		t.Fatalf("expected no frames from a partial header, got %d", len(frames))
	}
	if frames := p.Feed(raw[7 : len(raw)-1]); len(frames) != 0 {
		t.Fatalf("expected no frames before the checksum completes, got %d", len(frames))
	}
	frames := p.Feed(raw[len(raw)-1:])
	if len(frames) != 1 {
		t.Fatalf("expected the frame once complete, got %d", len(frames))
	}
	if p.Stats().Dropped() != 0 {
		t.Fatalf("unexpected drops: %+v", p.Stats())
	}
}

func TestParserResyncsAfterJunk(t *testing.T) {
	raw := mustEncode(t, NewEncoder(V2, 1, 1), GlobalPositionInt{Latitude: 10, Longitude: 20})
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 50; round++ {
		junk := make([]byte, 1+rng.Intn(300))
		rng.Read(junk)

		stream := append(append(junk, raw...), make([]byte, 300)...)
		p := NewParser()
		frames := collect(p, stream)

		found := false
		for _, f := range frames {
			if f.MessageID == MsgIDGlobalPositionInt && bytes.Equal(f.Payload, raw[headerLenV2:len(raw)-checksumLen]) {
				found = true
			}
		}
		if !found {
			t.Fatalf("round %d: frame after %d junk bytes was not recovered (stats %+v)", round, len(junk), p.Stats())
		}
	}
}

func TestParserFindsFrameInsideRejectedCandidate(t *testing.T) {
	raw := mustEncode(t, NewEncoder(V2, 1, 1), Heartbeat{Type: MavTypeGCS, MavlinkVersion: 3})

	// A stray v1 magic claims the real frame as its header and payload.
	stream := append([]byte{MagicV1}, raw...)
	stream = append(stream, make([]byte, 300)...)

	p := NewParser()
	frames := collect(p, stream)
	if len(frames) != 1 {
		t.Fatalf("expected the embedded frame, got %d frames (stats %+v)", len(frames), p.Stats())
	}
	if frames[0].MessageID != MsgIDHeartbeat {
		t.Fatalf("unexpected message id %d", frames[0].MessageID)
	}
	if p.Stats().Dropped() == 0 {
		t.Fatal("expected the bogus candidate to be counted as dropped")
	}
}

func TestParserRejectsSingleBitFlips(t *testing.T) {
	raw := mustEncode(t, NewEncoder(V2, 1, 1), GlobalPositionInt{
		TimeBootMs: 1000,
		Latitude:   55.7558,
		Longitude:  37.6173,
		Altitude:   150,
		Heading:    ptr(90.0),
	})

	total, accepted := 0, 0
	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), raw...)
			corrupt[i] ^= 1 << bit
			total++
			if len(NewParser().Feed(corrupt)) > 0 {
				accepted++
			}
		}
	}

	if accepted*100 > total {
		t.Fatalf("accepted %d of %d corrupted frames", accepted, total)
	}
}

func TestParserDropsUnknownCRCExtra(t *testing.T) {
	// message 200 has no crc-extra in the table
	frame := []byte{MagicV2, 1, 0, 0, 0, 1, 1, 200, 0, 0, 0x55, 0x12, 0x34}
	good := mustEncode(t, NewEncoder(V2, 1, 1), Heartbeat{MavlinkVersion: 3})

	p := NewParser()
	frames := collect(p, append(frame, good...))
	if len(frames) != 1 || frames[0].MessageID != MsgIDHeartbeat {
		t.Fatalf("expected only the heartbeat, got %+v", frames)
	}
	if p.Stats().UnknownCRCExtra != 1 {
		t.Fatalf("expected one unknown crc-extra drop, got %+v", p.Stats())
	}
}

func TestParserRejectsUnknownIncompatFlags(t *testing.T) {
	raw := mustEncode(t, NewEncoder(V2, 1, 1), Heartbeat{MavlinkVersion: 3})
	raw[2] = 0x80

	p := NewParser()
	if frames := p.Feed(raw); len(frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
	if p.Stats().Malformed != 1 {
		t.Fatalf("expected a malformed header, got %+v", p.Stats())
	}
}

func TestParserSkipsSignature(t *testing.T) {
	sig := bytes.Repeat([]byte{0xAB}, SignatureLen)
	payload, err := payloadFor(Heartbeat{Type: MavTypeQuadrotor, MavlinkVersion: 3}, V2)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	signed, err := MarshalFrame(Frame{
		Version:       V2,
		IncompatFlags: IncompatFlagSigned,
		Sequence:      9,
		SystemID:      1,
		ComponentID:   1,
		MessageID:     MsgIDHeartbeat,
		Payload:       payload,
		Signature:     sig,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	next := mustEncode(t, NewEncoder(V2, 1, 1), Attitude{Pitch: 0.25})

	p := NewParser()
	frames := collect(p, signed[:len(signed)-5], signed[len(signed)-5:], next)
	if len(frames) != 2 {
		t.Fatalf("expected two frames, got %d", len(frames))
	}
	if !frames[0].Signed() || !bytes.Equal(frames[0].Signature, sig) {
		t.Fatalf("signature not captured: %+v", frames[0])
	}
	if frames[1].MessageID != MsgIDAttitude {
		t.Fatalf("frame after the signature was lost: %+v", frames[1])
	}
	if p.Stats().Signed != 1 {
		t.Fatalf("expected one signed frame, got %+v", p.Stats())
	}
}

func TestParserCountsJunk(t *testing.T) {
	p := NewParser()
	p.Feed([]byte{0x00, 0x01, 0x02})
	raw := mustEncode(t, NewEncoder(V1, 1, 1), Heartbeat{})
	p.Feed(raw)

	st := p.Stats()
	if st.JunkBytes != 3 || st.Frames != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}
