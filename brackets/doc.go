package brackets

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidShape   = errors.New("invalid bracket document shape")
	ErrSlotOutOfRange = errors.New("bracket slot out of range")
)

// Slot — одна пара сетки. Участники nil, пока слот не заполнен
// победителями предыдущего раунда.
type Slot struct {
	Player1 *int `json:"player1_id"`
	Player2 *int `json:"player2_id"`
	Winner  *int `json:"winner_id,omitempty"`
	Bye     bool `json:"bye,omitempty"`
}

type Round []Slot

// Doc — документ сетки турнира. Для single elimination сериализуется
// как плоский массив раундов, для double elimination — как объект
// {"main": [...], "loser": [...]} (формат, который понимает фронтенд).
type Doc struct {
	Main  []Round
	Loser []Round // nil для single elimination
}

// doubleEnvelope — wire-представление double elimination.
type doubleEnvelope struct {
	Main  []Round `json:"main"`
	Loser []Round `json:"loser"`
}

func (d Doc) MarshalJSON() ([]byte, error) {
	if d.Loser == nil {
		return json.Marshal(d.Main)
	}
	return json.Marshal(doubleEnvelope{Main: d.Main, Loser: d.Loser})
}

func (d *Doc) UnmarshalJSON(data []byte) error {
	var env doubleEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Main != nil && env.Loser != nil {
		d.Main = env.Main
		d.Loser = env.Loser
		return nil
	}
	var rounds []Round
	if err := json.Unmarshal(data, &rounds); err == nil {
		d.Main = rounds
		d.Loser = nil
		return nil
	}
	return ErrInvalidShape
}

// Parse разбирает и валидирует клиентский документ сетки.
// Принимаются две формы: массив раундов либо объект с ключами main и loser,
// оба — массивы раундов. Всё остальное — ErrInvalidShape.
func Parse(raw json.RawMessage) (*Doc, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidShape
	}
	var probe interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, ErrInvalidShape
	}
	switch v := probe.(type) {
	case []interface{}:
		// плоский список раундов
	case map[string]interface{}:
		if _, ok := v["main"]; !ok {
			return nil, ErrInvalidShape
		}
		if _, ok := v["loser"]; !ok {
			return nil, ErrInvalidShape
		}
		if _, ok := v["main"].([]interface{}); !ok {
			return nil, ErrInvalidShape
		}
		if _, ok := v["loser"].([]interface{}); !ok {
			return nil, ErrInvalidShape
		}
	default:
		return nil, ErrInvalidShape
	}

	doc := &Doc{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, ErrInvalidShape
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate проверяет структурную целостность документа.
func (d *Doc) Validate() error {
	if len(d.Main) == 0 {
		return fmt.Errorf("%w: main bracket has no rounds", ErrInvalidShape)
	}
	for i, round := range d.Main {
		if len(round) == 0 {
			return fmt.Errorf("%w: main round %d is empty", ErrInvalidShape, i+1)
		}
	}
	for i, round := range d.Loser {
		if len(round) == 0 {
			return fmt.Errorf("%w: loser round %d is empty", ErrInvalidShape, i+1)
		}
	}
	return nil
}

// NumRounds — общее число раундов в storage-нумерации:
// main-раунды 1..len(Main), затем loser-раунды.
func (d *Doc) NumRounds() int {
	return len(d.Main) + len(d.Loser)
}

// roundAt переводит сквозной номер раунда в конкретный раунд документа.
func (d *Doc) roundAt(storageRound int) (Round, bool, error) {
	if storageRound < 1 || storageRound > d.NumRounds() {
		return nil, false, fmt.Errorf("%w: round %d", ErrSlotOutOfRange, storageRound)
	}
	if storageRound <= len(d.Main) {
		return d.Main[storageRound-1], false, nil
	}
	return d.Loser[storageRound-len(d.Main)-1], true, nil
}

// SlotAt возвращает указатель на слот по сквозному номеру раунда.
func (d *Doc) SlotAt(storageRound, slot int) (*Slot, error) {
	if storageRound < 1 || storageRound > d.NumRounds() {
		return nil, fmt.Errorf("%w: round %d", ErrSlotOutOfRange, storageRound)
	}
	var round Round
	if storageRound <= len(d.Main) {
		round = d.Main[storageRound-1]
	} else {
		round = d.Loser[storageRound-len(d.Main)-1]
	}
	if slot < 0 || slot >= len(round) {
		return nil, fmt.Errorf("%w: round %d slot %d", ErrSlotOutOfRange, storageRound, slot)
	}
	return &round[slot], nil
}

// Placement — результат продвижения: участник занимает позицию (1 или 2)
// в слоте указанного раунда. Сервис матчей переносит это в строки matches.
type Placement struct {
	Round         int
	Slot          int
	Position      int
	ParticipantID int
}

// ApplyResult записывает победителя слота и продвигает участников:
// победитель переходит в следующий раунд своей сетки, проигравший
// main-раунда при double elimination падает в loser bracket.
// Возвращает список новых размещений (пустой для финала).
func (d *Doc) ApplyResult(storageRound, slot, winnerID, loserID int) ([]Placement, error) {
	s, err := d.SlotAt(storageRound, slot)
	if err != nil {
		return nil, err
	}
	s.Winner = &winnerID

	var placements []Placement

	_, inLoser, err := d.roundAt(storageRound)
	if err != nil {
		return nil, err
	}

	if !inLoser {
		mainRound := storageRound
		if mainRound < len(d.Main) {
			p, err := d.place(mainRound+1, slot/2, slot%2+1, winnerID)
			if err != nil {
				return nil, err
			}
			placements = append(placements, p)
		}
		if d.Loser != nil && loserID != 0 {
			p, ok, err := d.dropLoser(mainRound, slot, loserID)
			if err != nil {
				return nil, err
			}
			if ok {
				placements = append(placements, p)
			}
		}
		return placements, nil
	}

	// Нижняя сетка чередует мажорные (нечётные) и минорные (чётные) раунды.
	// Победитель мажорного раунда остаётся в своём слоте и ждёт проигравшего
	// верхней сетки первым игроком минорного; победители минорного сводятся
	// попарно в следующий мажорный.
	loserRound := storageRound - len(d.Main)
	if loserRound < len(d.Loser) {
		var p Placement
		if loserRound%2 == 1 {
			p, err = d.place(storageRound+1, slot, 1, winnerID)
		} else {
			p, err = d.place(storageRound+1, slot/2, slot%2+1, winnerID)
		}
		if err != nil {
			return nil, err
		}
		placements = append(placements, p)
	}
	return placements, nil
}

// place заполняет позицию слота и возвращает размещение.
func (d *Doc) place(storageRound, slot, position, participantID int) (Placement, error) {
	target, err := d.SlotAt(storageRound, slot)
	if err != nil {
		return Placement{}, err
	}
	if position == 1 {
		target.Player1 = &participantID
	} else {
		target.Player2 = &participantID
	}
	return Placement{Round: storageRound, Slot: slot, Position: position, ParticipantID: participantID}, nil
}

// dropLoser помещает проигравшего main-раунда в соответствующий раунд
// loser bracket. Проигравшие раунда 1 занимают обе позиции первого
// loser-раунда, проигравшие последующих раундов приходят вторым игроком
// в "минорный" loser-раунд.
func (d *Doc) dropLoser(mainRound, slot, loserID int) (Placement, bool, error) {
	if len(d.Loser) == 0 {
		return Placement{}, false, nil
	}
	if mainRound == 1 {
		target := slot / 2
		position := slot%2 + 1
		if target >= len(d.Loser[0]) {
			return Placement{}, false, nil
		}
		p, err := d.place(len(d.Main)+1, target, position, loserID)
		return p, err == nil, err
	}
	loserRound := 2 * (mainRound - 1)
	if loserRound > len(d.Loser) {
		return Placement{}, false, nil
	}
	round := d.Loser[loserRound-1]
	if slot >= len(round) {
		return Placement{}, false, nil
	}
	p, err := d.place(len(d.Main)+loserRound, slot, 2, loserID)
	return p, err == nil, err
}

// Complete сообщает, разыгран ли финал основной сетки.
func (d *Doc) Complete() bool {
	if len(d.Main) == 0 {
		return false
	}
	final := d.Main[len(d.Main)-1]
	for _, s := range final {
		if s.Winner == nil {
			return false
		}
	}
	return true
}
