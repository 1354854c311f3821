// Package crc implements the CRC-16/Modbus checksum used to protect
// frames on the serial link.
package crc

// Checksum computes the CRC-16/Modbus checksum of data: the accumulator
// starts at 0xFFFF and each byte is folded in with eight rounds of the
// reflected polynomial 0xA001. The empty input yields 0xFFFF.
func Checksum(data []byte) uint16 {
	acc := uint16(0xFFFF)
	for _, b := range data {
		acc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if acc&1 != 0 {
				acc = (acc >> 1) ^ 0xA001
			} else {
				acc >>= 1
			}
		}
	}
	return acc
}
