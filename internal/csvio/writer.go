package csvio

import (
	"encoding/csv"
	"io"
	"strconv"

	"payengine/internal/model"
)

var snapshotHeader = []string{"client", "available", "held", "total", "locked"}

// Writer 输出账户快照，金额固定 4 位小数
type Writer struct {
	csv           *csv.Writer
	headerWritten bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

func (w *Writer) Write(account model.Account) error {
	if !w.headerWritten {
		if err := w.csv.Write(snapshotHeader); err != nil {
			return err
		}
		w.headerWritten = true
	}
	return w.csv.Write([]string{
		strconv.FormatUint(uint64(account.ClientID), 10),
		account.Available.StringFixed(model.AmountPrecision),
		account.Held.StringFixed(model.AmountPrecision),
		account.Total().StringFixed(model.AmountPrecision),
		strconv.FormatBool(account.Locked),
	})
}

// Flush 没有任何账户时也会写出表头
func (w *Writer) Flush() error {
	if !w.headerWritten {
		if err := w.csv.Write(snapshotHeader); err != nil {
			return err
		}
		w.headerWritten = true
	}
	w.csv.Flush()
	return w.csv.Error()
}

// WriteSnapshot 写出全部账户并 flush
func WriteSnapshot(out io.Writer, accounts []model.Account) error {
	w := NewWriter(out)
	for _, account := range accounts {
		if err := w.Write(account); err != nil {
			return err
		}
	}
	return w.Flush()
}
