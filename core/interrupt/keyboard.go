package interrupt

import (
	"context"
	"fmt"

	"github.com/eiannone/keyboard"
)

// KeyboardSource listens for key presses in raw terminal mode. When the
// terminal cannot be put into raw mode (no tty, permission denied) or stops
// delivering keys it hands over to Fallback.
type KeyboardSource struct {
	// Keys that trigger an interrupt. Defaults to space, enter and esc.
	Keys []keyboard.Key
	// OnQuit is called on Ctrl+C, which raw mode keeps from raising SIGINT.
	OnQuit func()
	// Fallback runs when raw key reading is unavailable.
	Fallback Source
}

func NewKeyboardSource(fallback Source, onQuit func()) *KeyboardSource {
	return &KeyboardSource{
		Keys:     []keyboard.Key{keyboard.KeySpace, keyboard.KeyEnter, keyboard.KeyEsc},
		OnQuit:   onQuit,
		Fallback: fallback,
	}
}

func (s *KeyboardSource) Run(ctx context.Context, emit Emit) error {
	keys, err := keyboard.GetKeys(10)
	if err != nil {
		return s.fallback(ctx, emit, fmt.Errorf("failed to open keyboard: %w", err))
	}

	err = s.readKeys(ctx, emit, keys)
	if closeErr := keyboard.Close(); closeErr != nil {
		logger.Warn("failed to restore terminal", "error", closeErr)
	}
	if err != nil {
		return s.fallback(ctx, emit, err)
	}
	return nil
}

func (s *KeyboardSource) readKeys(ctx context.Context, emit Emit, keys <-chan keyboard.KeyEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case key, ok := <-keys:
			if !ok {
				return nil
			}
			if key.Err != nil {
				return fmt.Errorf("failed to read key: %w", key.Err)
			}
			s.handle(ctx, emit, key)
		}
	}
}

func (s *KeyboardSource) fallback(ctx context.Context, emit Emit, cause error) error {
	if s.Fallback == nil {
		return cause
	}
	logger.WarnContext(ctx, "raw key listening unavailable, falling back to line input", "error", cause)
	return s.Fallback.Run(ctx, emit)
}

func (s *KeyboardSource) handle(ctx context.Context, emit Emit, key keyboard.KeyEvent) {
	if key.Key == keyboard.KeyCtrlC {
		if s.OnQuit != nil {
			s.OnQuit()
		}
		return
	}

	for _, trigger := range s.Keys {
		if key.Key == trigger {
			record(ctx, emit, NewEvent(KindKeyPress, keyName(key)))
			return
		}
	}
}

func keyName(key keyboard.KeyEvent) string {
	switch key.Key {
	case keyboard.KeySpace:
		return "space"
	case keyboard.KeyEnter:
		return "enter"
	case keyboard.KeyEsc:
		return "esc"
	}
	if key.Rune != 0 {
		return string(key.Rune)
	}
	return fmt.Sprintf("key %d", key.Key)
}
