package x3g

// CRC8 computes the Dallas/Maxim (iButton) CRC-8 of data: polynomial 0x8C,
// LSB first, zero initial value.
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0x8C
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
