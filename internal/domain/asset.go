package domain

// File is a binary payload headed for the provider's file store.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Size returns the payload length in bytes.
func (f File) Size() int {
	return len(f.Data)
}
