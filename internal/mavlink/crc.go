package mavlink

// crcInit is the X.25 (MCRF4XX) seed used by the frame checksum.
const crcInit uint16 = 0xFFFF

func crcAccumulate(b byte, crc uint16) uint16 {
	tmp := b ^ byte(crc&0xFF)
	tmp ^= tmp << 4

	return (crc >> 8) ^ (uint16(tmp) << 8) ^ (uint16(tmp) << 3) ^ (uint16(tmp) >> 4)
}

func crcAccumulateBytes(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crcAccumulate(b, crc)
	}

	return crc
}

// Checksum computes the frame checksum over the header bytes following the
// magic, the payload and the message CRC-extra.
func Checksum(headerNoMagic, payload []byte, crcExtra byte) uint16 {
	crc := crcAccumulateBytes(crcInit, headerNoMagic)
	crc = crcAccumulateBytes(crc, payload)

	return crcAccumulate(crcExtra, crc)
}
