package redisx

const (
	// Deadline set: sorted set of pending order ids scored by due time
	// in unix milliseconds.
	KeyDeadlines = "orders:deadlines"
)
