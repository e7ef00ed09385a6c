package ui

// iconBytes is a 16x16 PNG used for the tray icon.
var iconBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff, 0x61, 0x00, 0x00, 0x00,
	0x57, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda, 0x63, 0xf8, 0xf0, 0xe1, 0xc3,
	0x7f, 0x06, 0x32, 0x01, 0x5c, 0x2f, 0x39, 0x86, 0x60, 0xe8, 0x01, 0x09,
	0x68, 0xe8, 0x98, 0x10, 0x85, 0xb1, 0x5a, 0x08, 0x93, 0x20, 0x46, 0x33,
	0x88, 0xc6, 0x6a, 0x00, 0x21, 0x43, 0x90, 0xe5, 0x70, 0x1a, 0x80, 0xcb,
	0x10, 0x74, 0x31, 0xbc, 0x06, 0xa0, 0x6b, 0xc0, 0x66, 0x20, 0x41, 0x03,
	0x60, 0x1a, 0x71, 0x79, 0x89, 0xf6, 0x06, 0x50, 0xe4, 0x05, 0x8a, 0x02,
	0x91, 0xa2, 0x68, 0xa4, 0x28, 0x21, 0x51, 0x94, 0x94, 0x29, 0xca, 0x4c,
	0x94, 0x66, 0x67, 0x00, 0x65, 0xb9, 0x31, 0x38, 0xf8, 0x1b, 0x12, 0x17,
	0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}
