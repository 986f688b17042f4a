package common

import (
	"llmgate/internal/forward"
	"llmgate/internal/translator"
	"llmgate/internal/upstream"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// StreamAdapter converts parsed upstream SSE events into framed client
// bytes, accumulating token usage along the way.
type StreamAdapter interface {
	Feed(event []byte) [][]byte
	// Finish closes any state left open when the upstream ends silently.
	Finish() [][]byte
	Usage() forward.TokenUsage
}

type streamFeeder interface {
	Feed(event []byte) [][]byte
	Usage() forward.TokenUsage
}

type noFinish struct{ streamFeeder }

func (noFinish) Finish() [][]byte { return nil }

// NewStreamAdapter builds the converter from the upstream dialect to the
// client dialect. Same-dialect streams pass through with usage tracking.
func NewStreamAdapter(from, to translator.Format, model string, promptEstimate int64) StreamAdapter {
	if from == to {
		return &passthroughStream{
			format:         from,
			model:          model,
			promptEstimate: promptEstimate,
			dialect:        upstream.DialectFor(forward.ParseProvider(string(from))),
		}
	}
	switch from {
	case translator.FormatOpenAI:
		if to == translator.FormatAnthropic {
			return &translator.OpenAIToAnthropicStream{Model: model, PromptTokensEstimate: promptEstimate}
		}
		return noFinish{&translator.OpenAIToGeminiStream{}}
	case translator.FormatAnthropic:
		if to == translator.FormatOpenAI {
			return noFinish{&translator.AnthropicToOpenAIStream{Model: model}}
		}
		return noFinish{translator.NewAnthropicToGeminiStreamBridge(model)}
	default:
		if to == translator.FormatOpenAI {
			return noFinish{&translator.GeminiToOpenAIStream{Model: model}}
		}
		return translator.NewGeminiToAnthropicStreamBridge(model, promptEstimate)
	}
}

// passthroughStream reframes events unchanged while merging usage reported
// by the upstream. When the first event turns out to be OpenAI-shaped on a
// non-OpenAI route, byte passthrough is disabled for the whole stream and a
// converter takes over.
type passthroughStream struct {
	format         translator.Format
	model          string
	promptEstimate int64
	dialect        upstream.Dialect
	usage          forward.TokenUsage
	checked        bool
	converter      StreamAdapter
}

func (p *passthroughStream) Feed(event []byte) [][]byte {
	if !p.checked {
		p.checked = true
		if p.format != translator.FormatOpenAI && translator.LooksLikeOpenAIResponse(event) {
			log.WithFields(log.Fields{
				"declared": string(p.format),
			}).Warn("upstream stream is openai-shaped, converting")
			p.converter = NewStreamAdapter(translator.FormatOpenAI, p.format, p.model, p.promptEstimate)
		}
	}
	if p.converter != nil {
		return p.converter.Feed(event)
	}
	p.usage.Merge(p.dialect.ExtractUsage(event))
	return [][]byte{p.frame(event)}
}

func (p *passthroughStream) Finish() [][]byte {
	if p.converter != nil {
		return p.converter.Finish()
	}
	return nil
}

func (p *passthroughStream) Usage() forward.TokenUsage {
	if p.converter != nil {
		return p.converter.Usage()
	}
	return p.usage
}

func (p *passthroughStream) frame(event []byte) []byte {
	var out []byte
	if p.format == translator.FormatAnthropic {
		if t := gjson.GetBytes(event, "type").String(); t != "" {
			out = append(out, "event: "...)
			out = append(out, t...)
			out = append(out, '\n')
		}
	}
	out = append(out, "data: "...)
	out = append(out, event...)
	out = append(out, "\n\n"...)
	return out
}
