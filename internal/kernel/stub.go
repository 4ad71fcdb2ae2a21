package kernel

// InvokeCall is one recorded Invoke() call, captured by Stub for assertions.
type InvokeCall struct {
	Handle      uint32
	ScalarsWord uint32
	Args        []InvokeArg
}

// InvokeResponse scripts what Stub.Invoke returns for one call: an error, or
// nil. Stub does not interpret or write Args itself; a test that cares about out-buffer
// content writes directly into the Payload slices backing the InvokeArg
// pointers before Invoke returns, same as the real kernel would.
type InvokeResponse struct {
	Err error
}

// Stub is an in-memory Device for tests: Attach/AttachSensors succeed unless
// AttachErr/AttachSNSErr is set, and Invoke plays back a scripted queue of responses, recording
// every call it sees. Mirrors the stub-mode branch in the teacher's queue
// runner, which substitutes a fake completion source for the real kernel.
type Stub struct {
	Responses []InvokeResponse
	Calls     []InvokeCall

	AttachErr    error
	AttachSNSErr error
	CloseErr     error

	attached    bool
	attachedSNS bool
	closed      bool
}

// NewStub creates a Stub that will answer len(responses) Invoke calls in
// order, then fail any further call with ErrStubExhausted.
func NewStub(responses ...InvokeResponse) *Stub {
	return &Stub{Responses: responses}
}

func (s *Stub) Attach() error {
	if s.AttachErr != nil {
		return s.AttachErr
	}
	s.attached = true
	return nil
}

func (s *Stub) AttachSensors() error {
	if s.AttachSNSErr != nil {
		return s.AttachSNSErr
	}
	s.attachedSNS = true
	return nil
}

func (s *Stub) Invoke(handle uint32, scalarsWord uint32, args []InvokeArg) error {
	s.Calls = append(s.Calls, InvokeCall{Handle: handle, ScalarsWord: scalarsWord, Args: args})

	idx := len(s.Calls) - 1
	if idx >= len(s.Responses) {
		return ErrStubExhausted
	}
	return s.Responses[idx].Err
}

func (s *Stub) Close() error {
	s.closed = true
	return s.CloseErr
}

// Attached reports whether Attach has been called successfully.
func (s *Stub) Attached() bool { return s.attached }

// AttachedSensors reports whether AttachSensors has been called successfully.
func (s *Stub) AttachedSensors() bool { return s.attachedSNS }

// Closed reports whether Close has been called.
func (s *Stub) Closed() bool { return s.closed }
