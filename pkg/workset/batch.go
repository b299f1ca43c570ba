package workset

import "fmt"

// Tx is one unit of work run in its own child scope.
type Tx func(s *Scope) error

// RunBatch runs txs in order, each in a fresh child of root. A tx that
// returns an error is reverted and its error recorded; the others are
// committed.
//
// The returned slice has one entry per tx, nil for committed ones. The
// error is non-nil only when the batch itself cannot continue, e.g. when a
// commit aborted root.
func RunBatch(root *Scope, txs []Tx) ([]error, error) {
	results := make([]error, len(txs))

	for i, tx := range txs {
		child, err := root.Begin()
		if err != nil {
			return results, fmt.Errorf("tx %d: %w", i, err)
		}

		txErr := tx(child)
		if txErr != nil {
			results[i] = txErr

			err = revertAll(child)
			if err != nil {
				return results, fmt.Errorf("tx %d: %w", i, err)
			}

			root.log.Debug("tx reverted", "index", i, "error", txErr)

			continue
		}

		err = child.Commit()
		if err != nil {
			results[i] = err

			return results, fmt.Errorf("tx %d: %w", i, err)
		}
	}

	return results, nil
}

// revertAll reverts s and any children a failing tx left open.
func revertAll(s *Scope) error {
	if s.child != nil {
		err := revertAll(s.child)
		if err != nil {
			return err
		}
	}

	return s.Revert()
}
