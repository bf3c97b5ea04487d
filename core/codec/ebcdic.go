package codec

// EBCDIC translation (code page 037) for the character repertoire financial
// hosts actually exchange: digits, letters, space, and common punctuation.
// Bytes outside the table round-trip as-is.

var asciiToEbcdic [256]byte
var ebcdicToASCII [256]byte

func init() {
	for i := 0; i < 256; i++ {
		asciiToEbcdic[i] = byte(i)
		ebcdicToASCII[i] = byte(i)
	}
	pairs := map[byte]byte{
		' ': 0x40, '.': 0x4B, '<': 0x4C, '(': 0x4D, '+': 0x4E,
		'&': 0x50, '!': 0x5A, '$': 0x5B, '*': 0x5C, ')': 0x5D, ';': 0x5E,
		'-': 0x60, '/': 0x61, ',': 0x6B, '%': 0x6C, '_': 0x6D, '>': 0x6E, '?': 0x6F,
		':': 0x7A, '#': 0x7B, '@': 0x7C, '\'': 0x7D, '=': 0x7E, '"': 0x7F,
	}
	for a, e := range pairs {
		asciiToEbcdic[a] = e
		ebcdicToASCII[e] = a
	}
	for i := byte(0); i < 9; i++ {
		asciiToEbcdic['a'+i] = 0x81 + i
		asciiToEbcdic['A'+i] = 0xC1 + i
		ebcdicToASCII[0x81+i] = 'a' + i
		ebcdicToASCII[0xC1+i] = 'A' + i
	}
	for i := byte(0); i < 9; i++ {
		asciiToEbcdic['j'+i] = 0x91 + i
		asciiToEbcdic['J'+i] = 0xD1 + i
		ebcdicToASCII[0x91+i] = 'j' + i
		ebcdicToASCII[0xD1+i] = 'J' + i
	}
	for i := byte(0); i < 8; i++ {
		asciiToEbcdic['s'+i] = 0xA2 + i
		asciiToEbcdic['S'+i] = 0xE2 + i
		ebcdicToASCII[0xA2+i] = 's' + i
		ebcdicToASCII[0xE2+i] = 'S' + i
	}
	for i := byte(0); i < 10; i++ {
		asciiToEbcdic['0'+i] = 0xF0 + i
		ebcdicToASCII[0xF0+i] = '0' + i
	}
}

func toEbcdic(dst, src []byte) {
	for i, b := range src {
		dst[i] = asciiToEbcdic[b]
	}
}

func fromEbcdic(dst, src []byte) {
	for i, b := range src {
		dst[i] = ebcdicToASCII[b]
	}
}
