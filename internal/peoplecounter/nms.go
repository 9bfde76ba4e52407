package peoplecounter

import "sort"

type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (b Box) area() int { return max(0, b.W) * max(0, b.H) }

// IoU is intersection over union; 0 when the union is empty.
func IoU(a, b Box) float64 {
	iw := max(0, min(a.X+a.W, b.X+b.W)-max(a.X, b.X))
	ih := max(0, min(a.Y+a.H, b.Y+b.H)-max(a.Y, b.Y))
	inter := iw * ih
	union := a.area() + b.area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// NMS returns the indexes of the boxes kept by greedy non-max suppression:
// highest score first, dropping boxes whose IoU with a kept box reaches
// threshold. Equal scores keep input order.
func NMS(boxes []Box, scores []float64, threshold float64) []int {
	idxs := make([]int, len(boxes))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })

	keep := []int{}
	for len(idxs) > 0 {
		cur := idxs[0]
		keep = append(keep, cur)
		rest := idxs[:0:0]
		for _, i := range idxs[1:] {
			if IoU(boxes[cur], boxes[i]) < threshold {
				rest = append(rest, i)
			}
		}
		idxs = rest
	}
	return keep
}
