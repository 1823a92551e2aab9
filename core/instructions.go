package orchestration

// Step is one verb of a telephony instruction. The telephony layer executes
// the steps of an instruction strictly in order.
type Step interface {
	isStep()
}

// SayStep speaks text with the telephony layer's built-in voice. It needs no
// synthesized artifact, which makes it the terminal fallback when synthesis
// is unavailable.
type SayStep struct {
	Text string
}

// PlayStep plays a stored audio artifact.
type PlayStep struct {
	ArtifactID string
}

// RecordStep records the caller's next utterance and delivers it back as a
// recording-ready event.
type RecordStep struct{}

// HangupStep terminates the call.
type HangupStep struct{}

func (SayStep) isStep()    {}
func (PlayStep) isStep()   {}
func (RecordStep) isStep() {}
func (HangupStep) isStep() {}

// Instruction is the ordered response emitted for one telephony event.
type Instruction struct {
	Steps []Step
}

func InstructionOf(steps ...Step) Instruction {
	return Instruction{Steps: steps}
}

// Hangup returns the safe terminal instruction used when no session can
// handle an event.
func Hangup() Instruction {
	return InstructionOf(HangupStep{})
}

// EndsCall reports whether the instruction hangs the call up.
func (i Instruction) EndsCall() bool {
	for _, step := range i.Steps {
		if _, ok := step.(HangupStep); ok {
			return true
		}
	}
	return false
}

// ArtifactIDs lists the artifacts the instruction references. The
// orchestrator keeps these pinned in the artifact store until the session's
// next instruction replaces them.
func (i Instruction) ArtifactIDs() []string {
	ids := []string{}
	for _, step := range i.Steps {
		if play, ok := step.(PlayStep); ok {
			ids = append(ids, play.ArtifactID)
		}
	}
	return ids
}
