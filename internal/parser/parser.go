package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/conorfennell/tarottimer/internal/domain"
)

const (
	idKey       = "ID"
	nameKey     = "Name"
	arcanaKey   = "Arcana"
	suitKey     = "Suit"
	numberKey   = "Number"
	uprightKey  = "Upright"
	reversedKey = "Reversed"
	keywordsKey = "Keywords"

	separator = "---"
)

type state int

const (
	seeking state = iota
	readingFields
	readingUpright
	readingReversed
)

// ParseFile reads a deck table from the given path.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads card blocks from r. A block is a run of "Key: value" lines;
// blocks are separated by "---" or by a new "ID:" line. Upright and Reversed
// may continue over several lines. Anything outside a block is ignored.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Card
	var currentCard domain.Card
	var currentBlock []string
	var hasID bool
	var lineNo, startLine int
	currentState := seeking

	flushBlock := func() {
		if len(currentBlock) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(currentBlock, "\n"))
		switch currentState {
		case readingUpright:
			currentCard.Upright = content
		case readingReversed:
			currentCard.Reversed = content
		}
		currentBlock = nil
	}

	finishCard := func() error {
		flushBlock()
		if currentState != seeking {
			if !hasID {
				return fmt.Errorf("line %d: card has no %s", startLine, idKey)
			}
			cards = append(cards, currentCard)
		}
		currentCard = domain.Card{}
		hasID = false
		currentState = seeking
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if strings.TrimSpace(line) == separator {
			if err := finishCard(); err != nil {
				return nil, err
			}
			continue
		}

		key, value, ok := splitField(line)
		if !ok {
			if currentState == readingUpright || currentState == readingReversed {
				currentBlock = append(currentBlock, line)
			}
			continue
		}

		flushBlock()
		if key == idKey && currentState != seeking { // a new ID always starts a new card
			if err := finishCard(); err != nil {
				return nil, err
			}
		}
		if currentState == seeking {
			startLine = lineNo
		}
		currentState = readingFields

		switch {
		case key == idKey:
			id, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q", lineNo, idKey, value)
			}
			currentCard.ID = id
			hasID = true
		case key == nameKey:
			setName(&currentCard, domain.DefaultLocale, value)
		case strings.HasPrefix(key, nameKey+"."):
			setName(&currentCard, strings.ToLower(key[len(nameKey)+1:]), value)
		case key == arcanaKey:
			currentCard.Arcana = domain.Arcana(strings.ToLower(value))
		case key == suitKey:
			currentCard.Suit = strings.ToLower(value)
		case key == numberKey:
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q", lineNo, numberKey, value)
			}
			currentCard.Number = n
		case key == keywordsKey:
			currentCard.Keywords = splitList(value)
		case key == uprightKey:
			currentState = readingUpright
			currentBlock = append(currentBlock, value)
		case key == reversedKey:
			currentState = readingReversed
			currentBlock = append(currentBlock, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := finishCard(); err != nil { // finish the very last card in the file
		return nil, err
	}

	return cards, nil
}

// splitField recognises "Key: value" lines for the known keys.
func splitField(line string) (key, value string, ok bool) {
	key, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	switch key {
	case idKey, nameKey, arcanaKey, suitKey, numberKey, uprightKey, reversedKey, keywordsKey:
	default:
		if !strings.HasPrefix(key, nameKey+".") || len(key) == len(nameKey)+1 {
			return "", "", false
		}
	}
	return key, strings.TrimSpace(value), true
}

func setName(card *domain.Card, locale, name string) {
	if card.Names == nil {
		card.Names = make(map[string]string)
	}
	card.Names[locale] = name
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
