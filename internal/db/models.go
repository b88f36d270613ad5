package db

type History struct {
	ID           int64
	Library      string
	MediaID      string
	Title        string
	Author       string
	Format       string
	Barcode      string
	Branch       string
	FirstDate    string
	LastDate     string
	Deadline     string
	ProlongCount int64
	Lending      bool
}

type AccountCache struct {
	Library     string
	AccountID   string
	Data        string
	RefreshedAt int64
}
