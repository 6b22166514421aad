// Copyright 2026 Michael Kuhlmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wpe

import (
	"fmt"

	"github.com/livekit/protocol/logger"

	"github.com/michael-kuhlmann/paderbox/pkg/stft"
)

// TimeDomainProcessor dereverberates whole time-domain utterances by
// chaining STFT analysis, single-channel dereverberation, and overlap-add
// synthesis. It operates offline on complete signals, not on streams.
type TimeDomainProcessor struct {
	transform *stft.STFT
	derev     *Dereverberator
	log       logger.Logger
}

// NewTimeDomainProcessor creates the offline pipeline.
func NewTimeDomainProcessor(frameSize, hopSize int, cfg Config, log logger.Logger) (*TimeDomainProcessor, error) {
	transform, err := stft.New(frameSize, hopSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create transform: %w", err)
	}
	derev, err := NewDereverberator(cfg, log.WithValues("component", "processor"))
	if err != nil {
		return nil, err
	}
	return &TimeDomainProcessor{
		transform: transform,
		derev:     derev,
		log:       log.WithValues("component", "timedomain"),
	}, nil
}

// Process dereverberates samples and returns a signal of the same length.
// The tail that does not fill a complete analysis frame is passed through
// unmodified.
func (p *TimeDomainProcessor) Process(samples []float64) ([]float64, error) {
	frames := p.transform.Analyze(samples)
	if frames == nil {
		return nil, &ShapeError{
			Reason: fmt.Sprintf("signal has %d samples, need at least one %d-sample frame",
				len(samples), p.transform.FrameSize()),
		}
	}

	p.log.Debugw("processing utterance",
		"samples", len(samples),
		"frames", len(frames),
		"bins", p.transform.Bins())

	dereverberated, err := p.derev.Process(frames)
	if err != nil {
		return nil, err
	}

	synthesized, err := p.transform.Synthesize(dereverberated)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize: %w", err)
	}
	out := append([]float64(nil), samples...)
	copy(out, synthesized)
	return out, nil
}
