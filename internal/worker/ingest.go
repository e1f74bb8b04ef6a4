package worker

// runIngest fills the batch slab up to batch width and decodes until
// cs.logits has caught up with cs.tokens, yielding to cancel between every
// decode call. cancelled reports whether the caller asked to stop before
// ingest finished; when cancelled is true, err is always nil and no
// Ingest-done is emitted by the caller. On a decode error, logits and
// tokens are intentionally left desynchronized — the caller recovers via
// Edit, per this module's documented decode-failure contract.
func (w *Worker) runIngest(cs *contextState, cancel <-chan struct{}) (cancelled bool, err error) {
	for cs.needsIngesting() {
		start := len(cs.logits)
		remaining := len(cs.tokens) - start
		fill := remaining
		if fill > cs.params.BatchSizeTokens {
			fill = cs.params.BatchSizeTokens
		}

		cs.batch.Reset()
		for j := 0; j < fill; j++ {
			pos := int32(start + j)
			cs.batch.Add(cs.tokens[start+j], pos, []int32{seqID}, true)
		}

		select {
		case <-cancel:
			return true, nil
		default:
		}

		if err := w.engine.Decode(cs.native, cs.batch); err != nil {
			return false, err
		}

		for j := 0; j < fill; j++ {
			row, err := w.engine.GetLogitsRow(cs.native, j, cs.vocabSize)
			if err != nil {
				return false, err
			}
			cs.logits = append(cs.logits, row)
		}
	}
	return false, nil
}
