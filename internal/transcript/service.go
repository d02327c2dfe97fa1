package transcript

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Vovarama1992/webchat-skin/internal/webchat"
)

const (
	DefaultRevealDelay = 250 * time.Millisecond
	saveTimeout        = 5 * time.Second
)

// Service is the transcript of one session. Appends return immediately;
// a single worker saves and publishes entries in append order. Each entry is
// published hidden and made visible after the reveal delay.
type Service struct {
	sessionID   string
	repo        Repo
	pub         Publisher
	revealDelay time.Duration
	log         zerolog.Logger

	mu      sync.Mutex
	queue   []queued
	seq     int64
	base    int64
	closed  bool
	reveals map[int64]*time.Timer

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

var _ webchat.Transcript = (*Service)(nil)

// queued is an entry to commit or, with reset set, a reset marker.
type queued struct {
	entry Entry
	reset bool
}

func New(sessionID string, repo Repo, pub Publisher, revealDelay time.Duration, log zerolog.Logger) *Service {
	if revealDelay < 0 {
		revealDelay = 0
	}
	s := &Service{
		sessionID:   sessionID,
		repo:        repo,
		pub:         pub,
		revealDelay: revealDelay,
		log:         log.With().Str("component", "transcript").Str("session_id", sessionID).Logger(),
		reveals:     make(map[int64]*time.Timer),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Service) AddAgentMsg(text, timestamp string) {
	s.append(Entry{Kind: KindAgent, Text: text, Timestamp: timestamp})
}

func (s *Service) AddCustomerMsg(text, timestamp string) {
	s.append(Entry{Kind: KindCustomer, Text: text, Timestamp: timestamp})
}

func (s *Service) AddSystemMsg(msg webchat.SystemMsg) {
	s.append(Entry{Kind: KindSystem, Text: msg.Msg})
}

func (s *Service) AddAutomatonMsg(text string) {
	s.append(Entry{Kind: KindAutomaton, Text: text, DialogLinks: CountDialogLinks(text)})
}

func (s *Service) AddQuickReply(widget webchat.QuickReplyWidget, text, timestamp string) {
	w := widget
	s.append(Entry{Kind: KindQuickReply, Text: text, Timestamp: timestamp, Widget: &w})
}

// Entries returns what has been saved since the last reset.
func (s *Service) Entries(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	base := s.base
	s.mu.Unlock()

	all, err := s.repo.ListEntries(ctx, s.sessionID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if e.Seq > base {
			out = append(out, e)
		}
	}
	return out, nil
}

// Reset starts a new view of the transcript: the widget drops what it shows
// and later entries are all that Entries reports. Saved history is kept.
func (s *Service) Reset() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.base = s.seq
	s.queue = append(s.queue, queued{entry: Entry{Seq: s.seq}, reset: true})
	s.mu.Unlock()
	s.signal()
}

// Close saves what is queued, cancels pending reveals and stops the worker.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()

	s.mu.Lock()
	var unrevealed []int64
	for seq, t := range s.reveals {
		if t.Stop() {
			unrevealed = append(unrevealed, seq)
		}
		delete(s.reveals, seq)
	}
	s.mu.Unlock()

	sort.Slice(unrevealed, func(i, j int) bool { return unrevealed[i] < unrevealed[j] })
	for _, seq := range unrevealed {
		s.pub.Publish(s.sessionID, Frame{Type: FrameEntryVisible, Seq: seq})
	}
}

func (s *Service) append(e Entry) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Warn().Str("kind", string(e.Kind)).Msg("append after close dropped")
		return
	}
	s.seq++
	e.Seq = s.seq
	e.SessionID = s.sessionID
	e.CreatedAt = time.Now().UnixMilli()
	s.queue = append(s.queue, queued{entry: e})
	s.mu.Unlock()
	s.signal()
}

func (s *Service) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.wake:
			s.drain()
		case <-s.done:
			s.drain()
			return
		}
	}
}

func (s *Service) drain() {
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for i := range batch {
			if batch[i].reset {
				s.pub.Publish(s.sessionID, Frame{Type: FrameReset, Seq: batch[i].entry.Seq})
				continue
			}
			s.commit(&batch[i].entry)
		}
	}
}

func (s *Service) commit(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := s.repo.SaveEntry(ctx, e); err != nil {
		// the entry is still shown; only history is affected
		s.log.Error().Err(err).Int64("seq", e.Seq).Msg("save entry")
	}

	entry := *e
	s.pub.Publish(s.sessionID, Frame{Type: FrameEntry, Entry: &entry})
	s.scheduleReveal(e.Seq)
}

func (s *Service) scheduleReveal(seq int64) {
	s.mu.Lock()
	if s.closed {
		// closing: no timers left behind
		s.mu.Unlock()
		s.pub.Publish(s.sessionID, Frame{Type: FrameEntryVisible, Seq: seq})
		return
	}
	s.reveals[seq] = time.AfterFunc(s.revealDelay, func() {
		s.mu.Lock()
		_, pending := s.reveals[seq]
		delete(s.reveals, seq)
		s.mu.Unlock()
		if pending {
			s.pub.Publish(s.sessionID, Frame{Type: FrameEntryVisible, Seq: seq})
		}
	})
	s.mu.Unlock()
}
