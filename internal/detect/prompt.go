package detect

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// defaultPromptTemplate is the fixed instruction sent to the language model.
// [TEXT] is replaced with the transcription, [MIN_CONFIDENCE] with the
// configured threshold.
const defaultPromptTemplate = `You are a Bible verse detection expert. Analyze the following sermon transcription for Bible verse references.
Your task is to identify both explicit and implicit Bible verse references, including paraphrased verses and verse ranges.

Rules:
1. Detect explicit references (e.g., "John 3:16", "Genesis 1:1-3")
2. Detect implicit references (e.g., "as we read earlier in the Gospel of John")
3. Detect contextual references (e.g., "the next verse", "continuing in chapter 3")
4. Detect paraphrased verses (e.g., if someone says "God made the heavens and earth" -> Genesis 1:1)
5. Consider thematic similarities (e.g., creation story -> Genesis 1)
6. IMPORTANT: When detecting verses, identify the EXACT verses being read
   For example:
   - If someone reads "Blessed is the one who does not walk... but whose delight is in the law..." -> This is Psalm 1:1-2
   - Do NOT combine verses unless they are actually being read together
   - Pay attention to where the quote starts and ends
7. Assign confidence scores:
   - 1.0 for exact quotes
   - 0.8-0.9 for close paraphrases
   - 0.6-0.7 for thematic matches
   - 0.4-0.5 for possible references
8. Only return verses with confidence >= [MIN_CONFIDENCE]
9. IMPORTANT: Use exact book names as follows:
   - Genesis, Exodus, Leviticus, etc.
   - Psalm (not Psalms)
   - Matthew, Mark, Luke, John
   - 1 Corinthians (not First Corinthians)
10. IMPORTANT: Return ONLY raw JSON without any markdown formatting, code blocks, or additional text

Response format (return EXACTLY this format without any other text):
{
  "detections": [{
    "book": {
      "number": <1-66>,
      "name": "<full book name>",
      "shortName": "<3-letter code>"
    },
    "chapter": <number>,
    "verse": <number>,
    "verseRange": {
      "start": <number>,
      "end": <number>
    },
    "confidence": <0.0-1.0>,
    "detectionType": "explicit" | "implicit" | "contextual",
    "translation": "NIV"
  }]
}
Include verseRange ONLY if multiple verses are actually being read.

Transcription to analyze: [TEXT]`

// PromptSource builds detection prompts from a template. A template file can
// be configured and is hot-reloaded on change; without one the built-in
// template is used.
type PromptSource struct {
	minConfidence float64
	log           zerolog.Logger

	mu       sync.RWMutex
	template string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewPromptSource creates a prompt source. If file is non-empty it is loaded
// immediately and watched for changes.
func NewPromptSource(file string, minConfidence float64, log zerolog.Logger) (*PromptSource, error) {
	ps := &PromptSource{
		minConfidence: minConfidence,
		log:           log,
		template:      defaultPromptTemplate,
		done:          make(chan struct{}),
	}

	if file == "" {
		return ps, nil
	}

	if err := ps.loadFile(file); err != nil {
		return nil, fmt.Errorf("load prompt file: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("prompt watcher: %w", err)
	}
	if err := w.Add(file); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch prompt file: %w", err)
	}
	ps.watcher = w
	go ps.watch(file)

	log.Info().Str("file", file).Msg("prompt template loaded, watching for changes")
	return ps, nil
}

// Build returns the full prompt for the given transcription.
func (ps *PromptSource) Build(text string) string {
	ps.mu.RLock()
	tmpl := ps.template
	ps.mu.RUnlock()

	prompt := strings.ReplaceAll(tmpl, "[MIN_CONFIDENCE]", fmt.Sprintf("%.2f", ps.minConfidence))
	return strings.ReplaceAll(prompt, "[TEXT]", text)
}

// Close stops the file watcher if one is running.
func (ps *PromptSource) Close() {
	if ps.watcher != nil {
		close(ps.done)
		ps.watcher.Close()
	}
}

func (ps *PromptSource) loadFile(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return fmt.Errorf("prompt file %s is empty", file)
	}
	ps.mu.Lock()
	ps.template = string(data)
	ps.mu.Unlock()
	return nil
}

func (ps *PromptSource) watch(file string) {
	for {
		select {
		case <-ps.done:
			return
		case event, ok := <-ps.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := ps.loadFile(file); err != nil {
				ps.log.Warn().Err(err).Msg("prompt reload failed, keeping previous template")
				continue
			}
			ps.log.Info().Str("file", file).Msg("prompt template reloaded")
		case err, ok := <-ps.watcher.Errors:
			if !ok {
				return
			}
			ps.log.Warn().Err(err).Msg("prompt watcher error")
		}
	}
}
