package synthesis

import "time"

type Callbacks struct {
	OnReady func(sampleRate int)
	OnAudio func(data []byte)
	OnDone  func()
	OnError func(error)
}

type Config struct {
	APIKey     string
	Model      string
	SampleRate int
	Encoding   string
	// IdleWindow closes the stream once no audio has arrived for this long
	// after the first chunk.
	IdleWindow time.Duration
	// Deadline bounds a single synthesis end to end.
	Deadline time.Duration
}

type Request struct {
	Text string
}
