package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// FFmpegSource decodes any URL ffmpeg understands. YouTube watch links are
// first resolved to a direct audio stream.
type FFmpegSource struct {
	// Binary defaults to "ffmpeg" on PATH.
	Binary  string
	YouTube *youtube.Client
}

func (s *FFmpegSource) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	link := url
	if isYouTubeURL(url) {
		resolved, err := s.resolveYouTube(ctx, url)
		if err != nil {
			return nil, err
		}
		link = resolved
	}
	return s.ffmpeg(link)
}

func (s *FFmpegSource) resolveYouTube(ctx context.Context, url string) (string, error) {
	videoID, err := extractYouTubeID(url)
	if err != nil {
		return "", err
	}

	client := s.YouTube
	if client == nil {
		client = &youtube.Client{}
	}

	video, err := client.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("youtube client error: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return "", errors.New("no audio formats found for video")
	}

	link, err := client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return "", fmt.Errorf("get stream URL error: %w", err)
	}
	return link, nil
}

// ffmpeg is not bound to the request context: the stream outlives the
// command that started it and is ended by closing the reader.
func (s *FFmpegSource) ffmpeg(link string) (io.ReadCloser, error) {
	bin := s.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.Command(bin,
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", link,
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	reader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("command start error: %w", err)
	}

	return &processReader{ReadCloser: reader, cmd: cmd}, nil
}

type processReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *processReader) Close() error {
	_ = p.cmd.Process.Kill()
	err := p.ReadCloser.Close()
	_ = p.cmd.Wait()
	return err
}

func isYouTubeURL(url string) bool {
	return strings.Contains(url, "youtu.be/") || strings.Contains(url, "youtube.com/watch?v=")
}

func extractYouTubeID(url string) (string, error) {
	switch {
	case strings.Contains(url, "youtu.be/"):
		parts := strings.Split(url, "youtu.be/")
		if len(parts) != 2 || parts[1] == "" {
			return "", errors.New("invalid YouTube URL format")
		}
		return strings.Split(parts[1], "?")[0], nil

	case strings.Contains(url, "youtube.com/watch?v="):
		parts := strings.Split(url, "v=")
		if len(parts) != 2 || parts[1] == "" {
			return "", errors.New("invalid YouTube URL format")
		}
		return strings.Split(parts[1], "&")[0], nil

	default:
		return "", errors.New("unsupported URL format")
	}
}
