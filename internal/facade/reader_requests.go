package facade

import (
	"ddscore/internal/ddserror"
	"ddscore/internal/ddsid"
	"ddscore/internal/participant"
)

// TakeRequest implements the reader family's take operation of spec.md
// section 6: every sample currently available, removed from the cache.
// NoData is returned (not an empty slice error) when nothing matched, per
// spec.md section 7.
type TakeRequest struct {
	Reader *participant.DataReader
	Reply  chan TakeResult
}

type TakeResult struct {
	Samples []participant.Sample
	Err     error
}

func (r TakeRequest) execute(*participant.Participant) {
	samples, err := r.Reader.Take()
	if err == nil && len(samples) == 0 {
		err = ddserror.NoData()
	}
	r.Reply <- TakeResult{Samples: samples, Err: err}
}

// ReadRequest implements read: like Take but samples remain in the cache.
type ReadRequest struct {
	Reader *participant.DataReader
	Reply  chan TakeResult
}

func (r ReadRequest) execute(*participant.Participant) {
	samples, err := r.Reader.Read()
	if err == nil && len(samples) == 0 {
		err = ddserror.NoData()
	}
	r.Reply <- TakeResult{Samples: samples, Err: err}
}

// TakeNextInstanceRequest implements take_next_instance: Take, filtered
// down to one instance handle.
type TakeNextInstanceRequest struct {
	Reader   *participant.DataReader
	Instance ddsid.InstanceHandle
	Reply    chan TakeResult
}

func (r TakeNextInstanceRequest) execute(*participant.Participant) {
	all, err := r.Reader.Take()
	if err != nil {
		r.Reply <- TakeResult{Err: err}
		return
	}
	var matched []participant.Sample
	for _, s := range all {
		if s.Instance == r.Instance {
			matched = append(matched, s)
		}
	}
	if len(matched) == 0 {
		r.Reply <- TakeResult{Err: ddserror.NoData()}
		return
	}
	r.Reply <- TakeResult{Samples: matched}
}

// ReadNextInstanceRequest implements read_next_instance: Read, filtered
// down to one instance handle.
type ReadNextInstanceRequest struct {
	Reader   *participant.DataReader
	Instance ddsid.InstanceHandle
	Reply    chan TakeResult
}

func (r ReadNextInstanceRequest) execute(*participant.Participant) {
	all, err := r.Reader.Read()
	if err != nil {
		r.Reply <- TakeResult{Err: err}
		return
	}
	var matched []participant.Sample
	for _, s := range all {
		if s.Instance == r.Instance {
			matched = append(matched, s)
		}
	}
	if len(matched) == 0 {
		r.Reply <- TakeResult{Err: ddserror.NoData()}
		return
	}
	r.Reply <- TakeResult{Samples: matched}
}

// GetMatchedPublicationsRequest implements the reader's matched-writer
// query.
type GetMatchedPublicationsRequest struct {
	Reader *participant.DataReader
	Reply  chan []ddsid.GUID
}

func (r GetMatchedPublicationsRequest) execute(*participant.Participant) {
	r.Reply <- r.Reader.MatchedPublications()
}
