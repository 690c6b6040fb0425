package app

const (
	Name           = "groundlink"
	SourceURL      = "https://git.skobk.in/skobkin/groundlink"
	ConfigFilename = "config.json"
	DBFilename     = "recorder.db"
	LogFilename    = "groundlink.log"
	WriterQueueCap = 512
)
