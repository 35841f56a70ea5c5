package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dhcgn/kakaotalk-to-doc/model"
)

// DefaultMaxSize bounds a single transcript upload.
const DefaultMaxSize int64 = 10 * 1024 * 1024

var (
	ErrEmptyPath     = errors.New("transcript path is empty")
	ErrInputTooLarge = errors.New("transcript exceeds the size limit")
	ErrNotText       = errors.New("transcript must be a .txt export")
)

var (
	headerPattern        = regexp.MustCompile(`^\[(.+?)\]\s*\[(오전|오후|(?i:am|pm))\s*(\d{1,2}):(\d{2})\]\s*(.+)$`)
	dateSeparatorPattern = regexp.MustCompile(`^-+\s*(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일\s*.+-+$`)
)

// Options tunes parsing. The zero value parses with DefaultRules and the
// wall clock.
type Options struct {
	// MaxSize caps the bytes Read accepts; zero means DefaultMaxSize.
	MaxSize int64
	// Rules overrides the content classification rules.
	Rules []Rule
	// Now supplies the processing time used for records that carry no
	// timestamp of their own and for transcripts without a date separator.
	Now    func() time.Time
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.Rules == nil {
		o.Rules = DefaultRules
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Read loads a transcript export from disk and parses it.
func Read(path string, opts Options) ([]model.Message, error) {
	opts.defaults()
	file, err := open(path, opts.MaxSize)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file, opts)
}

// ReadText applies the same guards as Read and returns the raw text.
func ReadText(path string, opts Options) (string, error) {
	opts.defaults()
	file, err := open(path, opts.MaxSize)
	if err != nil {
		return "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}

// CheckSize rejects text longer than maxSize bytes; zero means
// DefaultMaxSize.
func CheckSize(text string, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if int64(len(text)) > maxSize {
		return fmt.Errorf("transcript is %d bytes: %w", len(text), ErrInputTooLarge)
	}
	return nil
}

func open(path string, maxSize int64) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrEmptyPath
	}
	if !strings.EqualFold(filepath.Ext(path), ".txt") {
		return nil, fmt.Errorf("%s: %w", path, ErrNotText)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat transcript: %w", err)
	}
	if info.Size() > maxSize {
		file.Close()
		return nil, fmt.Errorf("%s is %d bytes: %w", path, info.Size(), ErrInputTooLarge)
	}
	return file, nil
}

// ParseString parses an in-memory transcript. It never fails.
func ParseString(text string, opts Options) []model.Message {
	msgs, _ := Parse(strings.NewReader(text), opts)
	return msgs
}

// Parse converts transcript text into records in file order. Unrecognized
// input degrades to system records or continuation text; only a failing
// reader produces an error.
func Parse(r io.Reader, opts Options) ([]model.Message, error) {
	opts.defaults()

	p := &parser{opts: opts}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), int(opts.MaxSize)+1)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		p.feed(strings.TrimSpace(line))
	}
	p.flush()

	if err := scanner.Err(); err != nil {
		return p.messages, fmt.Errorf("read transcript: %w", err)
	}

	if opts.Logger != nil {
		opts.Logger.Debug("transcript parsed", "messages", len(p.messages), "skipped", p.skipped)
	}
	return p.messages, nil
}

// pending is a header line whose body may continue on following lines.
type pending struct {
	sender  string
	hour    int
	minute  int
	content []string
}

type parser struct {
	opts     Options
	messages []model.Message
	current  *pending
	date     *time.Time
	skipped  int
}

func (p *parser) feed(line string) {
	if line == "" {
		p.flush()
		return
	}

	if isBanner(line) {
		p.skipped++
		return
	}

	if m := dateSeparatorPattern.FindStringSubmatch(line); m != nil {
		p.flush()
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		p.date = &date
		return
	}

	if m := headerPattern.FindStringSubmatch(line); m != nil {
		p.flush()
		hour, _ := strconv.Atoi(m[3])
		minute, _ := strconv.Atoi(m[4])
		p.current = &pending{
			sender:  m[1],
			hour:    to24Hour(m[2], hour),
			minute:  minute,
			content: []string{m[5]},
		}
		return
	}

	if p.current != nil {
		p.current.content = append(p.current.content, line)
		return
	}

	p.messages = append(p.messages, model.Message{
		Timestamp: model.WallClock(p.opts.Now()),
		Content:   line,
		Type:      model.TypeSystem,
	})
}

func (p *parser) flush() {
	if p.current == nil {
		return
	}
	cur := p.current
	p.current = nil

	content := strings.TrimSpace(strings.Join(cur.content, " "))
	typ, content := Classify(content, p.opts.Rules)

	p.messages = append(p.messages, model.Message{
		Timestamp: p.resolve(cur.hour, cur.minute),
		Sender:    strings.TrimSpace(cur.sender),
		Content:   content,
		Type:      typ,
	})
}

func (p *parser) resolve(hour, minute int) time.Time {
	var day time.Time
	if p.date != nil {
		day = *p.date
	} else {
		day = model.WallClock(p.opts.Now())
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
}

func to24Hour(marker string, hour int) int {
	switch strings.ToUpper(marker) {
	case "오후", "PM":
		if hour != 12 {
			hour += 12
		}
	case "오전", "AM":
		if hour == 12 {
			hour = 0
		}
	}
	return hour
}

func isBanner(line string) bool {
	return strings.Contains(line, "님과 카카오톡 대화") ||
		strings.Contains(line, "저장한 날짜") ||
		line == "카카오톡 대화 내보내기"
}
