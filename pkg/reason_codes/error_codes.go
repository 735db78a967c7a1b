package reasoncodes

type ReasonCode string

const (
	ErrInvalidArtifact       ReasonCode = "InvalidArtifactError"
	ErrEmptyCommand          ReasonCode = "EmptyCommandError"
	ErrMissingEndpoint       ReasonCode = "MissingEndpointError"
	ErrEngineFailure         ReasonCode = "EngineFailureError"
	ErrRemoteProving         ReasonCode = "RemoteProvingError"
	ErrInvalidRemoteResponse ReasonCode = "InvalidRemoteResponseError"
	ErrNoProof               ReasonCode = "NoProofError"
	ErrSubmissionFailed      ReasonCode = "SubmissionFailedError"
	ErrSubmissionTimeout     ReasonCode = "SubmissionTimeoutError"
	ErrPopupBlocked          ReasonCode = "PopupBlockedError"
	ErrUserCancelled         ReasonCode = "UserCancelledError"
	ErrProviderError         ReasonCode = "ProviderError"
	ErrHandshakeAborted      ReasonCode = "HandshakeAbortedError"
	ErrUnmarshal             ReasonCode = "UnmarshalError"
	ErrNameResolution        ReasonCode = "NameResolutionError"
	ErrNotFound              ReasonCode = "NotFoundError"
	ErrConflict              ReasonCode = "ConflictError"
	ErrInternal              ReasonCode = "InternalError"
)
