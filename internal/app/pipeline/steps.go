package pipeline

type Step string

const (
	StepReadArtifact    Step = "read-artifact"
	StepLoadEngine      Step = "load-engine"
	StepInitEngine      Step = "init-engine"
	StepFetchBlueprint  Step = "fetch-blueprint"
	StepCreateProver    Step = "create-prover"
	StepInitAuxRuntime  Step = "init-aux-runtime"
	StepGenerateProof   Step = "generate-proof"
	StepVerifyProof     Step = "verify-proof"
	StepSendRemote      Step = "send-remote"
	StepRemoteGenerate  Step = "remote-generate"
	StepProcessResponse Step = "process-response"
	StepSubmitOnchain   Step = "submit-onchain"
	StepSubmitComplete  Step = "submit-complete"
	StepSubmitFailed    Step = "submit-failed"
)

type milestone struct {
	step     Step
	progress int
}

var localSchedule = []milestone{
	{StepReadArtifact, 5},
	{StepLoadEngine, 10},
	{StepInitEngine, 20},
	{StepFetchBlueprint, 30},
	{StepCreateProver, 40},
	{StepInitAuxRuntime, 50},
	{StepGenerateProof, 60},
	{StepVerifyProof, 90},
}

var remoteSchedule = []milestone{
	{StepReadArtifact, 5},
	{StepSendRemote, 20},
	{StepRemoteGenerate, 40},
	{StepProcessResponse, 80},
}

func progressOf(schedule []milestone, step Step) int {
	for _, m := range schedule {
		if m.step == step {
			return m.progress
		}
	}
	return 0
}

var stepLabels = map[Step]string{
	StepReadArtifact:    "Reading email file...",
	StepLoadEngine:      "Loading proof engine...",
	StepInitEngine:      "Initializing proof engine...",
	StepFetchBlueprint:  "Fetching blueprint...",
	StepCreateProver:    "Creating prover...",
	StepInitAuxRuntime:  "Initializing circuit runtime...",
	StepGenerateProof:   "Generating proof (this may take a while)...",
	StepVerifyProof:     "Verifying proof...",
	StepSendRemote:      "Sending email to proving server...",
	StepRemoteGenerate:  "Generating proof on server...",
	StepProcessResponse: "Processing server response...",
	StepSubmitOnchain:   "Submitting proof on-chain...",
	StepSubmitComplete:  "Proof submitted",
	StepSubmitFailed:    "Submission failed",
}

// Label is a human readable description of the step.
func (s Step) Label() string {
	if l, ok := stepLabels[s]; ok {
		return l
	}
	return string(s)
}
