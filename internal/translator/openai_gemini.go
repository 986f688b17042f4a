package translator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

func init() {
	Register(FormatOpenAI, FormatGemini, TranslatorConfig{
		RequestTransform:  OpenAIToGeminiRequest,
		ResponseTransform: OpenAIToGeminiResponse,
	})
	Register(FormatGemini, FormatOpenAI, TranslatorConfig{
		RequestTransform:  GeminiToOpenAIRequest,
		ResponseTransform: GeminiToOpenAIResponse,
	})
}

// AllowedGenerationConfigFields are the generationConfig keys passed through
// to Gemini upstreams.
var AllowedGenerationConfigFields = []string{
	"temperature", "topK", "topP", "candidateCount", "maxOutputTokens",
	"stopSequences", "presencePenalty", "frequencyPenalty", "seed",
	"responseMimeType", "responseSchema", "responseModalities",
	"thinkingConfig", "audioConfig", "mediaResolution", "speechConfig",
	"routingConfig",
}

// OpenAIToGeminiRequest converts an OpenAI chat completion request into a
// Gemini generateContent request.
func OpenAIToGeminiRequest(model string, rawJSON []byte, stream bool) []byte {
	src := gjson.ParseBytes(rawJSON)

	var systemParts []string
	var contents []map[string]interface{}

	for _, msg := range src.Get("messages").Array() {
		role := msg.Get("role").String()
		switch role {
		case "system", "developer":
			if s := openaiContentAsText(msg.Get("content")); s != "" {
				systemParts = append(systemParts, s)
			}
		case "tool", "function":
			var response interface{}
			text := openaiContentAsText(msg.Get("content"))
			var parsed interface{}
			if err := json.Unmarshal([]byte(text), &parsed); err == nil {
				response = parsed
			} else {
				response = map[string]interface{}{"result": text}
			}
			contents = append(contents, map[string]interface{}{
				"role": "user",
				"parts": []interface{}{
					map[string]interface{}{
						"functionResponse": map[string]interface{}{
							"name":     msg.Get("tool_call_id").String(),
							"response": response,
						},
					},
				},
			})
		default:
			parts := openaiContentToGeminiParts(msg.Get("content"))
			for _, tc := range msg.Get("tool_calls").Array() {
				parts = append(parts, toolCallToFunctionCall(tc))
			}
			if len(parts) == 0 {
				parts = append(parts, map[string]interface{}{"text": ""})
			}
			outRole := "user"
			if role == "assistant" {
				outRole = "model"
			}
			contents = append(contents, map[string]interface{}{
				"role":  outRole,
				"parts": parts,
			})
		}
	}

	out := map[string]interface{}{"contents": contents}
	if len(systemParts) > 0 {
		out["systemInstruction"] = map[string]interface{}{
			"parts": []interface{}{map[string]interface{}{"text": strings.Join(systemParts, "\n\n")}},
		}
	}

	genCfg := map[string]interface{}{}
	if existing := src.Get("generationConfig"); existing.IsObject() {
		for _, key := range AllowedGenerationConfigFields {
			if v := existing.Get(key); v.Exists() {
				genCfg[key] = v.Value()
			}
		}
	}
	if v := src.Get("max_tokens"); v.Exists() {
		if _, ok := genCfg["maxOutputTokens"]; !ok {
			genCfg["maxOutputTokens"] = v.Int()
		}
	}
	if v := src.Get("temperature"); v.Exists() {
		genCfg["temperature"] = v.Float()
	}
	if v := src.Get("top_p"); v.Exists() {
		genCfg["topP"] = v.Float()
	}
	if v := src.Get("presence_penalty"); v.Exists() {
		genCfg["presencePenalty"] = v.Float()
	}
	if v := src.Get("frequency_penalty"); v.Exists() {
		genCfg["frequencyPenalty"] = v.Float()
	}
	if v := src.Get("seed"); v.Exists() {
		genCfg["seed"] = v.Int()
	}
	if v := src.Get("stop"); v.Exists() {
		if _, ok := genCfg["stopSequences"]; !ok {
			if v.IsArray() {
				var stops []interface{}
				for _, s := range v.Array() {
					stops = append(stops, s.String())
				}
				genCfg["stopSequences"] = stops
			} else {
				genCfg["stopSequences"] = []interface{}{v.String()}
			}
		}
	}
	if len(genCfg) > 0 {
		out["generationConfig"] = genCfg
	}

	if decls := mapOpenAIToolsToGemini(src.Get("tools")); decls != nil {
		out["tools"] = []interface{}{map[string]interface{}{"functionDeclarations": decls}}
	}
	if tc := mapOpenAIToolChoiceToGemini(src.Get("tool_choice")); tc != nil {
		out["toolConfig"] = tc
	}

	b, err := json.Marshal(out)
	if err != nil {
		return rawJSON
	}
	return SanitizeJSON(b)
}

func openaiContentToGeminiParts(content gjson.Result) []interface{} {
	var parts []interface{}
	switch {
	case content.Type == gjson.String:
		if content.String() != "" {
			parts = append(parts, map[string]interface{}{"text": content.String()})
		}
	case content.IsArray():
		for _, part := range content.Array() {
			switch part.Get("type").String() {
			case "text":
				parts = append(parts, map[string]interface{}{"text": part.Get("text").String()})
			case "image_url":
				url := part.Get("image_url.url").String()
				if mime, data, ok := parseDataURL(url); ok {
					parts = append(parts, map[string]interface{}{
						"inlineData": map[string]interface{}{"mimeType": mime, "data": data},
					})
				} else {
					parts = append(parts, map[string]interface{}{"text": "[Image] " + url})
				}
			}
		}
	}
	return parts
}

// parseDataURL splits a "data:<mime>;base64,<data>" URL.
func parseDataURL(url string) (mime, data string, ok bool) {
	if !strings.HasPrefix(url, "data:") {
		return "", "", false
	}
	rest := url[len("data:"):]
	sep := ";base64,"
	i := strings.Index(rest, sep)
	if i < 0 {
		return "", "", false
	}
	return rest[:i], rest[i+len(sep):], true
}

func toolCallToFunctionCall(tc gjson.Result) map[string]interface{} {
	var args interface{} = map[string]interface{}{}
	if raw := tc.Get("function.arguments").String(); raw != "" {
		var parsed interface{}
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			args = parsed
		}
	}
	return map[string]interface{}{
		"functionCall": map[string]interface{}{
			"name": tc.Get("function.name").String(),
			"args": args,
		},
	}
}

func mapOpenAIToolsToGemini(tools gjson.Result) []interface{} {
	if !tools.IsArray() {
		return nil
	}
	var out []interface{}
	for _, tool := range tools.Array() {
		fn := tool.Get("function")
		if !fn.Exists() {
			continue
		}
		decl := map[string]interface{}{"name": fn.Get("name").String()}
		if d := fn.Get("description"); d.Exists() {
			decl["description"] = d.String()
		}
		if p := fn.Get("parameters"); p.Exists() {
			decl["parameters"] = p.Value()
		}
		out = append(out, decl)
	}
	return out
}

func mapOpenAIToolChoiceToGemini(tc gjson.Result) map[string]interface{} {
	if !tc.Exists() {
		return nil
	}
	cfg := map[string]interface{}{}
	if tc.Type == gjson.String {
		switch tc.String() {
		case "auto":
			cfg["mode"] = "AUTO"
		case "none":
			cfg["mode"] = "NONE"
		case "required":
			cfg["mode"] = "ANY"
		default:
			return nil
		}
	} else if name := tc.Get("function.name").String(); name != "" {
		cfg["mode"] = "ANY"
		cfg["allowedFunctionNames"] = []interface{}{name}
	} else {
		return nil
	}
	return map[string]interface{}{"functionCallingConfig": cfg}
}

// GeminiToOpenAIRequest converts a Gemini generateContent request into an
// OpenAI chat completion request.
func GeminiToOpenAIRequest(model string, rawJSON []byte, stream bool) []byte {
	src := gjson.ParseBytes(rawJSON)

	var messages []map[string]interface{}

	if si := src.Get("systemInstruction.parts"); si.IsArray() {
		var sb strings.Builder
		for _, p := range si.Array() {
			sb.WriteString(p.Get("text").String())
		}
		if sb.Len() > 0 {
			messages = append(messages, map[string]interface{}{"role": "system", "content": sb.String()})
		}
	}

	callSeq := 0
	for _, content := range src.Get("contents").Array() {
		role := "user"
		if content.Get("role").String() == "model" {
			role = "assistant"
		}

		var parts []interface{}
		var toolCalls []interface{}
		var toolResults []map[string]interface{}

		for _, part := range content.Get("parts").Array() {
			switch {
			case part.Get("text").Exists():
				parts = append(parts, map[string]interface{}{"type": "text", "text": part.Get("text").String()})
			case part.Get("inlineData").Exists():
				inline := part.Get("inlineData")
				url := fmt.Sprintf("data:%s;base64,%s", inline.Get("mimeType").String(), inline.Get("data").String())
				parts = append(parts, map[string]interface{}{
					"type":      "image_url",
					"image_url": map[string]interface{}{"url": url},
				})
			case part.Get("fileData").Exists():
				parts = append(parts, map[string]interface{}{
					"type": "text",
					"text": "[File] " + part.Get("fileData.fileUri").String(),
				})
			case part.Get("functionCall").Exists():
				fn := part.Get("functionCall")
				args := "{}"
				if a := fn.Get("args"); a.Exists() {
					args = a.Raw
				}
				toolCalls = append(toolCalls, map[string]interface{}{
					"id":   fmt.Sprintf("gemini_call_%d", callSeq),
					"type": "function",
					"function": map[string]interface{}{
						"name":      fn.Get("name").String(),
						"arguments": args,
					},
				})
				callSeq++
			case part.Get("functionResponse").Exists():
				fr := part.Get("functionResponse")
				resp := fr.Get("response")
				body := ""
				if resp.Exists() {
					body = resp.Raw
				}
				toolResults = append(toolResults, map[string]interface{}{
					"role":         "tool",
					"tool_call_id": fr.Get("name").String(),
					"content":      body,
				})
			}
		}

		if len(parts) > 0 || len(toolCalls) > 0 {
			out := map[string]interface{}{"role": role, "content": openaiContentFromParts(parts)}
			if len(toolCalls) > 0 {
				out["tool_calls"] = toolCalls
			}
			messages = append(messages, out)
		}
		messages = append(messages, toolResults...)
	}

	out := map[string]interface{}{
		"model":    model,
		"messages": messages,
		"stream":   stream,
	}

	gen := src.Get("generationConfig")
	if v := gen.Get("maxOutputTokens"); v.Exists() {
		out["max_tokens"] = v.Int()
	}
	if v := gen.Get("temperature"); v.Exists() {
		out["temperature"] = v.Float()
	}
	if v := gen.Get("topP"); v.Exists() {
		out["top_p"] = v.Float()
	}
	if v := gen.Get("presencePenalty"); v.Exists() {
		out["presence_penalty"] = v.Float()
	}
	if v := gen.Get("frequencyPenalty"); v.Exists() {
		out["frequency_penalty"] = v.Float()
	}
	if v := gen.Get("seed"); v.Exists() {
		out["seed"] = v.Int()
	}
	if v := gen.Get("stopSequences"); v.IsArray() {
		var stops []interface{}
		for _, s := range v.Array() {
			stops = append(stops, s.String())
		}
		if len(stops) > 0 {
			out["stop"] = stops
		}
	}

	var tools []interface{}
	for _, tool := range src.Get("tools").Array() {
		for _, decl := range tool.Get("functionDeclarations").Array() {
			fn := map[string]interface{}{"name": decl.Get("name").String()}
			if d := decl.Get("description"); d.Exists() {
				fn["description"] = d.String()
			}
			if p := decl.Get("parameters"); p.Exists() {
				fn["parameters"] = p.Value()
			}
			tools = append(tools, map[string]interface{}{"type": "function", "function": fn})
		}
	}
	if len(tools) > 0 {
		out["tools"] = tools
	}

	if mode := src.Get("toolConfig.functionCallingConfig.mode"); mode.Exists() {
		switch mode.String() {
		case "AUTO":
			out["tool_choice"] = "auto"
		case "NONE":
			out["tool_choice"] = "none"
		case "ANY":
			names := src.Get("toolConfig.functionCallingConfig.allowedFunctionNames")
			if names.IsArray() && len(names.Array()) == 1 {
				out["tool_choice"] = map[string]interface{}{
					"type":     "function",
					"function": map[string]interface{}{"name": names.Array()[0].String()},
				}
			} else {
				out["tool_choice"] = "auto"
			}
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return rawJSON
	}
	return b
}
