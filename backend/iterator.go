package backend

type Iterator interface {
	SeekToFirst()
	Seek(key []byte)
	Next()
	Close()
	Key() []byte
	Value() []byte
	Valid() bool
	Error() error
}
