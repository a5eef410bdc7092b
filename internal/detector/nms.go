package detector

import "sort"

// nms suppresses overlapping detections, keeping the highest-scoring face
// out of each cluster. The result stays sorted by score descending, which
// Detect relies on to pick the face for the landmark pass.
func nms(faces []Face, iouThreshold float32) []Face {
	if len(faces) == 0 {
		return faces
	}

	sort.Slice(faces, func(i, j int) bool {
		return faces[i].Score > faces[j].Score
	})

	kept := make([]Face, 0, len(faces))
	for _, face := range faces {
		suppressed := false
		for _, winner := range kept {
			if face.Box.IoU(winner.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, face)
		}
	}
	return kept
}
