package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"

	"github.com/framepoint/framepoint/fileutil"
	"github.com/framepoint/framepoint/provider"
)

// Service extracts audio tracks and transcribes them with whisper.
type Service struct {
	client *openai.Client
	ffmpeg string
}

func NewService(client *openai.Client, ffmpegPath string) (*Service, error) {
	if client == nil {
		return nil, errors.New("NewService: client is nil")
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Service{client: client, ffmpeg: ffmpegPath}, nil
}

// ExtractAudio writes the video's audio track as an mp3 at audioPath,
// overwriting any previous file there.
func (s *Service) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	if videoPath == "" || audioPath == "" {
		return errors.New("ExtractAudio: empty path")
	}

	cmd := exec.CommandContext(ctx, s.ffmpeg, extractArgs(videoPath, audioPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("extract audio from %s: %w: %s",
			filepath.Base(videoPath), err, fileutil.Truncate(stderr.String(), 400))
	}
	return nil
}

func extractArgs(videoPath, audioPath string) []string {
	return []string{"-y", "-i", videoPath, "-vn", "-acodec", "libmp3lame", "-q:a", "4", audioPath}
}

// Transcribe sends the audio file to whisper and returns its timed segments.
func (s *Service) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	resp, err := provider.Retry(ctx, func(ctx context.Context) (*openai.Transcription, error) {
		// Reopened per attempt: a retried request must re-read from the start.
		f, err := os.Open(audioPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		return s.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
			File:                   f,
			Model:                  openai.AudioModelWhisper1,
			ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
			TimestampGranularities: []string{"segment"},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", filepath.Base(audioPath), err)
	}

	// The typed response drops segment timings; verbose_json carries them.
	var verbose openai.TranscriptionVerbose
	if err := json.Unmarshal([]byte(resp.RawJSON()), &verbose); err != nil {
		return nil, fmt.Errorf("parse verbose transcription: %w", err)
	}

	segments := make([]Segment, 0, len(verbose.Segments))
	for _, seg := range verbose.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Start: seg.Start, End: seg.End, Text: text})
	}
	return segments, nil
}
