package log

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentBackend = "backend"
	ComponentSession = "session"
	ComponentService = "service"
	ComponentAMQP    = "amqp"
	ComponentWatch   = "watch"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentStorage = "storage"
)
