package player

import "fmt"

// Kind names a state variant.
type Kind string

const (
	KindIdle         Kind = "idle"
	KindStarting     Kind = "starting"
	KindLoading      Kind = "loading"
	KindReady        Kind = "ready"
	KindTranscribing Kind = "transcribing"
	KindComplete     Kind = "complete"
	KindError        Kind = "error"
	KindStopped      Kind = "stopped"
)

// State is one of Idle, Starting, Loading, Ready, Transcribing, Complete,
// Error or Stopped.
type State interface {
	Kind() Kind
	String() string
	state()
}

type Idle struct{}

type Starting struct{}

// Loading is reported while the ASR backend is being prepared.
type Loading struct {
	Backend string
}

type Ready struct{}

// Transcribing carries session progress.
type Transcribing struct {
	Video   string
	Percent int
	Done    int
	Total   int
}

type Complete struct {
	Video string
}

type Error struct {
	Message string
}

type Stopped struct{}

func (Idle) Kind() Kind         { return KindIdle }
func (Starting) Kind() Kind     { return KindStarting }
func (Loading) Kind() Kind      { return KindLoading }
func (Ready) Kind() Kind        { return KindReady }
func (Transcribing) Kind() Kind { return KindTranscribing }
func (Complete) Kind() Kind     { return KindComplete }
func (Error) Kind() Kind        { return KindError }
func (Stopped) Kind() Kind      { return KindStopped }

func (Idle) String() string     { return string(KindIdle) }
func (Starting) String() string { return string(KindStarting) }
func (s Loading) String() string {
	if s.Backend == "" {
		return string(KindLoading)
	}
	return fmt.Sprintf("loading %s", s.Backend)
}
func (Ready) String() string { return string(KindReady) }
func (s Transcribing) String() string {
	return fmt.Sprintf("transcribing %d%% (%d/%d)", s.Percent, s.Done, s.Total)
}
func (Complete) String() string { return string(KindComplete) }
func (s Error) String() string  { return "error: " + s.Message }
func (Stopped) String() string  { return string(KindStopped) }

func (Idle) state()         {}
func (Starting) state()     {}
func (Loading) state()      {}
func (Ready) state()        {}
func (Transcribing) state() {}
func (Complete) state()     {}
func (Error) state()        {}
func (Stopped) state()      {}
