package config

const (
	// MaxFolderNameLength is the maximum length for folder names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255) and provide
	// reasonable UX (names should be short and descriptive).
	MaxFolderNameLength = 255

	// MaxInviteBatchSize caps how many contributors a single invite call
	// can add. Bigger batches almost always mean a client bug, and the
	// per-contributor event fan-out grows with the batch.
	MaxInviteBatchSize = 100
)
