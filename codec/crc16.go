package codec

// Checksum computes the CRC16/Modbus checksum of data: polynomial 0xA001
// (reversed 0x8005), initial register 0xFFFF, each input byte processed
// LSB-first across 8 shift iterations. The result is the final register as
// two bytes, low byte first, matching the order they are appended to an
// outbound frame. An empty input yields the unmodified initial register,
// {0xFF, 0xFF}.
func Checksum(data []byte) [2]byte {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return [2]byte{byte(crc), byte(crc >> 8)}
}
