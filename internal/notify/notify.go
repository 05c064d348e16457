// Package notify surfaces trade lifecycle events on the terminal while the
// pool runs headless.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/fatih/color"

	"momentum-trader/internal/models"
)

// Kind classifies a notification.
type Kind int

const (
	KindEntry Kind = iota
	KindExit
	KindError
	KindInfo
)

// Notification is one terminal event.
type Notification struct {
	Kind      Kind
	Symbol    string
	Message   string
	Price     float64
	ProfitPct float64
	Timestamp time.Time
	// Priority > 0 rings the terminal bell.
	Priority int
}

// Notifier prints notifications from a buffered channel so the monitors never
// block on a slow terminal. When the buffer fills, the oldest entry is dropped.
type Notifier struct {
	notifications chan Notification
	done          chan struct{}
	once          sync.Once

	mu      sync.RWMutex
	enabled bool
	bell    bool
}

// NewNotifier creates a notifier with the given buffer size.
func NewNotifier(bufferSize int) *Notifier {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Notifier{
		notifications: make(chan Notification, bufferSize),
		done:          make(chan struct{}),
		enabled:       true,
		bell:          true,
	}
}

// SetEnabled turns the notifier on or off.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetBellEnabled turns the terminal bell on or off.
func (n *Notifier) SetBellEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bell = enabled
}

// Start begins draining the notification channel. Stop ends it.
func (n *Notifier) Start() {
	go func() {
		for {
			select {
			case <-n.done:
				return
			case note := <-n.notifications:
				n.print(note)
			}
		}
	}()
}

// Stop terminates the printer goroutine. Idempotent.
func (n *Notifier) Stop() {
	n.once.Do(func() { close(n.done) })
}

// Notify queues a notification, dropping the oldest queued entry when full.
func (n *Notifier) Notify(note Notification) {
	n.mu.RLock()
	enabled := n.enabled
	n.mu.RUnlock()
	if !enabled {
		return
	}

	if note.Timestamp.IsZero() {
		note.Timestamp = time.Now()
	}

	select {
	case n.notifications <- note:
	default:
		select {
		case <-n.notifications:
		default:
		}
		select {
		case n.notifications <- note:
		default:
		}
	}
}

// TradeOpened announces a filled entry.
func (n *Notifier) TradeOpened(symbol string, shares int, price float64) {
	n.Notify(Notification{
		Kind:     KindEntry,
		Symbol:   symbol,
		Message:  fmt.Sprintf("bought %d @ %.2f", shares, price),
		Price:    price,
		Priority: 1,
	})
}

// TradeClosed announces a completed trade.
func (n *Notifier) TradeClosed(record models.TradeRecord) {
	n.Notify(Notification{
		Kind:      KindExit,
		Symbol:    record.Ticker,
		Message:   fmt.Sprintf("sold %d @ %.2f (%s)", record.Shares, record.ExitPrice, record.ExitReason),
		Price:     record.ExitPrice,
		ProfitPct: record.ProfitPercent,
		Priority:  1,
	})
}

// Info queues an informational line.
func (n *Notifier) Info(symbol, message string) {
	n.Notify(Notification{Kind: KindInfo, Symbol: symbol, Message: message})
}

// Error queues an error line with the bell armed.
func (n *Notifier) Error(symbol, message string) {
	n.Notify(Notification{Kind: KindError, Symbol: symbol, Message: message, Priority: 1})
}

func (n *Notifier) print(note Notification) {
	n.mu.RLock()
	bell := n.bell
	n.mu.RUnlock()

	if bell && note.Priority > 0 {
		fmt.Print("\a")
	}

	stamp := note.Timestamp.Format("15:04:05")
	switch note.Kind {
	case KindEntry:
		color.Cyan("[%s] ENTRY %s: %s", stamp, note.Symbol, note.Message)
	case KindExit:
		if note.ProfitPct >= 0 {
			color.Green("[%s] EXIT  %s: %s %+.2f%%", stamp, note.Symbol, note.Message, note.ProfitPct)
		} else {
			color.Red("[%s] EXIT  %s: %s %+.2f%%", stamp, note.Symbol, note.Message, note.ProfitPct)
		}
	case KindError:
		color.Red("[%s] ERROR %s: %s", stamp, note.Symbol, note.Message)
	default:
		fmt.Printf("[%s] %s: %s\n", stamp, note.Symbol, note.Message)
	}
}
