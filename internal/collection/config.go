package collection

// CollectionConfig is the persisted, user-facing description of a
// collection: its name, which columns get embedded, which model embeds
// them, and where its database and index files live relative to the
// collection's own directory. Mirrors the original Rust CollectionConfig
// field-for-field, including its defaults.
type CollectionConfig struct {
	Name                 string   `json:"name"`
	IndexColumns         []string `json:"index_columns"`
	ModelName            string   `json:"model_name"`
	ModelVariant         string   `json:"model_variant"`
	DBPath               string   `json:"db_path"`
	IndexDir             string   `json:"index_dir"`
	SerializationVersion int      `json:"serialization_version"`
}

// Default configuration values, matching collection_utils.rs.
const (
	DefaultName                 = "default"
	DefaultModelName             = "mys/minilm"
	DefaultModelVariant          = "f32"
	DefaultDBPath                = "data.db"
	DefaultIndexDir              = "index"
	DefaultSerializationVersion  = 1
)

// NewConfig returns a CollectionConfig for name with every other field at
// its default, the same defaults collection_utils.rs applies via serde.
func NewConfig(name string) CollectionConfig {
	return CollectionConfig{
		Name:                 name,
		IndexColumns:         []string{"text"},
		ModelName:            DefaultModelName,
		ModelVariant:         DefaultModelVariant,
		DBPath:               DefaultDBPath,
		IndexDir:             DefaultIndexDir,
		SerializationVersion: DefaultSerializationVersion,
	}
}

// withDefaults fills any zero-valued field left empty by a caller-supplied
// config (e.g. one decoded from a partial JSON request body).
func (c CollectionConfig) withDefaults() CollectionConfig {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if len(c.IndexColumns) == 0 {
		c.IndexColumns = []string{"text"}
	}
	if c.ModelName == "" {
		c.ModelName = DefaultModelName
	}
	if c.ModelVariant == "" {
		c.ModelVariant = DefaultModelVariant
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.IndexDir == "" {
		c.IndexDir = DefaultIndexDir
	}
	if c.SerializationVersion == 0 {
		c.SerializationVersion = DefaultSerializationVersion
	}
	return c
}
