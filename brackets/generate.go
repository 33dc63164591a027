package brackets

import (
	"errors"
	"fmt"
	"math"

	"github.com/MathiasNeri/Projet-Dev-FilRouge/models"
)

var (
	ErrNotEnoughParticipants = errors.New("not enough participants to generate a bracket (minimum 2)")
	ErrUnsupportedFormat     = errors.New("unsupported tournament format for bracket generation")
)

// Generate строит детерминированную сетку для заданного порядка участников.
// Число участников дополняется byes до ближайшей степени двойки, пары первого
// раунда рассеиваются классическим fold-посевом (1 vs N, 2 vs N-1, ...).
// Для double elimination дополнительно создаётся пустая нижняя сетка,
// принимающая проигравших из верхней.
func Generate(participantIDs []int, format models.TournamentFormat) (*Doc, error) {
	n := len(participantIDs)
	if n < 2 {
		return nil, ErrNotEnoughParticipants
	}

	switch format {
	case models.FormatSingleElimination, models.FormatDoubleElimination:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	numRounds := int(math.Ceil(math.Log2(float64(n))))
	bracketSize := 1 << uint(numRounds)

	doc := &Doc{Main: buildMainRounds(participantIDs, bracketSize, numRounds)}

	if format == models.FormatDoubleElimination {
		doc.Loser = buildLoserRounds(bracketSize, numRounds)
	}
	return doc, nil
}

// buildMainRounds раскладывает участников по слотам первого раунда и
// создаёт пустые слоты последующих. Byes продвигаются сразу.
func buildMainRounds(participantIDs []int, bracketSize, numRounds int) []Round {
	pairs := seedPairs(bracketSize)

	rounds := make([]Round, numRounds)
	first := make(Round, bracketSize/2)
	for i, pair := range pairs {
		var s Slot
		if pair[0] < len(participantIDs) {
			id := participantIDs[pair[0]]
			s.Player1 = &id
		}
		if pair[1] < len(participantIDs) {
			id := participantIDs[pair[1]]
			s.Player2 = &id
		}
		// Один участник без соперника — bye, победитель известен заранее.
		if s.Player1 != nil && s.Player2 == nil {
			s.Bye = true
			s.Winner = s.Player1
		} else if s.Player2 != nil && s.Player1 == nil {
			s.Bye = true
			s.Winner = s.Player2
			s.Player1 = s.Player2
			s.Player2 = nil
		}
		first[i] = s
	}
	rounds[0] = first

	for r := 1; r < numRounds; r++ {
		rounds[r] = make(Round, bracketSize>>(uint(r)+1))
	}

	// Победители bye-слотов занимают свои места во втором раунде сразу,
	// чтобы сетка не ждала несуществующих матчей.
	if numRounds > 1 {
		for i, s := range rounds[0] {
			if s.Bye && s.Winner != nil {
				target := &rounds[1][i/2]
				if i%2 == 0 {
					target.Player1 = s.Winner
				} else {
					target.Player2 = s.Winner
				}
			}
		}
	}
	return rounds
}

// buildLoserRounds создаёт пустую нижнюю сетку стандартной формы:
// по два раунда на каждый раунд верхней сетки, кроме финала.
func buildLoserRounds(bracketSize, numRounds int) []Round {
	loser := make([]Round, 0, 2*(numRounds-1))
	for i := 1; i < numRounds; i++ {
		size := bracketSize >> (uint(i) + 1)
		if size < 1 {
			size = 1
		}
		loser = append(loser, make(Round, size), make(Round, size))
	}
	return loser
}

// seedPairs возвращает пары посевов первого раунда для сетки размера
// bracketSize (степень двойки): {0,N-1}, {N/2-1,N/2}, ... — так, чтобы
// первый и второй посев могли встретиться только в финале.
func seedPairs(bracketSize int) [][2]int {
	if bracketSize < 2 {
		return nil
	}
	seeds := []int{0}
	for len(seeds) < bracketSize {
		next := make([]int, 0, len(seeds)*2)
		total := len(seeds)*2 - 1
		for _, s := range seeds {
			next = append(next, s, total-s)
		}
		seeds = next
	}
	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(seeds); i += 2 {
		pairs = append(pairs, [2]int{seeds[i], seeds[i+1]})
	}
	return pairs
}
