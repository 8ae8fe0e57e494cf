package persistenceTypes // nolint: golint

// ProviderConfig interface implemented by every backend configuration
type ProviderConfig interface{}

// BoltDBConfig configuration of the BoltDB backend
type BoltDBConfig struct {
	File string
}

// MemConfig configuration of the in memory backend
type MemConfig struct{}

var _ ProviderConfig = (*BoltDBConfig)(nil)
var _ ProviderConfig = (*MemConfig)(nil)
