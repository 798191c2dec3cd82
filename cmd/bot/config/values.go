package config

const (
	// AppName is the name of the application.
	AppName = "warden"

	// BackendJSON stores records as JSON files on disk.
	BackendJSON = "json"

	// BackendMongo stores records in MongoDB.
	BackendMongo = "mongo"
)

// Config holds the runtime configuration, populated from the environment.
type Config struct {
	// BotToken is the token for the bot.
	BotToken string `env:"BOT_TOKEN,required"`

	// ApplicationID is the ID of the Discord application.
	ApplicationID string `env:"APPLICATION_ID,required"`

	// StoreBackend selects the persistence backend, json or mongo.
	StoreBackend string `env:"STORE_BACKEND" envDefault:"json"`

	// DataDir is where the json backend keeps its files.
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// MongoURI is the MongoDB connection string, required for the mongo
	// backend.
	MongoURI string `env:"MONGO_URI"`

	// MonitoringPort is the port the metrics and health server listens on.
	MonitoringPort string `env:"MONITORING_PORT" envDefault:"8080"`
}
