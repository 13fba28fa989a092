package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	PlatformsFile string
	RulesFile     string
	PostsDir      string
	Port          string
	BaseUrl       string
	WorkerCount   int
	QueueInterval int
	PollSchedule  string
	APIAccessKey  string

	// Publishing configuration
	MaxAttempts     int
	StaleAfter      int
	JobRetention    int
	MaxItemsPerPoll int
	FeedTimeout     int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
