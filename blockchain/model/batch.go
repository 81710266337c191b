package model

// Batch is one epoch of candidate transactions as it is framed on disk.
type Batch struct {
	MagicNumber  []byte
	Size         uint32
	Number       int
	Transactions []*Transaction
}

func (b Batch) Len() int { return len(b.Transactions) }
