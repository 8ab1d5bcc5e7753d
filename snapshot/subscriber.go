package snapshot

// Subscriber handles event subscriptions.
type Subscriber struct {
	done             chan struct{}
	startedHandler   func(WatchStarted)
	completedHandler func(CaptureCompleted)
	errorHandler     func(CaptureError)
	shutdownHandler  func(WatchShutdown)
}

// OnWatchStarted sets the handler for WatchStarted events
func OnWatchStarted(fn func(WatchStarted)) func(*Subscriber) {
	return func(s *Subscriber) { s.startedHandler = fn }
}

// OnCaptureCompleted sets the handler for CaptureCompleted events
func OnCaptureCompleted(fn func(CaptureCompleted)) func(*Subscriber) {
	return func(s *Subscriber) { s.completedHandler = fn }
}

// OnCaptureError sets the handler for CaptureError events
func OnCaptureError(fn func(CaptureError)) func(*Subscriber) {
	return func(s *Subscriber) { s.errorHandler = fn }
}

// OnWatchShutdown sets the handler for WatchShutdown events
func OnWatchShutdown(fn func(WatchShutdown)) func(*Subscriber) {
	return func(s *Subscriber) { s.shutdownHandler = fn }
}

// NewSubscriber starts dispatching events to the given handlers until the
// channel closes. The returned closer blocks until every event was handled.
//
//	closer := snapshot.NewSubscriber(events,
//	  snapshot.OnCaptureCompleted(func(e snapshot.CaptureCompleted) { ... }),
//	)
//	defer closer()
func NewSubscriber(events <-chan Event, opts ...func(*Subscriber)) func() {
	s := &Subscriber{
		done:             make(chan struct{}),
		startedHandler:   func(WatchStarted) {},
		completedHandler: func(CaptureCompleted) {},
		errorHandler:     func(CaptureError) {},
		shutdownHandler:  func(WatchShutdown) {},
	}

	for _, opt := range opts {
		opt(s)
	}

	go func() {
		defer close(s.done)
		for ev := range events {
			switch e := ev.(type) {
			case WatchStarted:
				s.startedHandler(e)
			case CaptureCompleted:
				s.completedHandler(e)
			case CaptureError:
				s.errorHandler(e)
			case WatchShutdown:
				s.shutdownHandler(e)
			}
		}
	}()

	return func() {
		<-s.done
	}
}
