package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"payengine/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrMalformedRow   = errors.New("输入行格式错误")
	ErrUnknownType    = errors.New("未知的交易类型")
	ErrMissingAmount  = errors.New("存取款缺少金额")
	ErrUnexpectedAmt  = errors.New("争议类记录不应携带金额")
	ErrNegativeAmount = errors.New("金额不能为负数")
	ErrFieldCount     = errors.New("字段数量错误")
)

// RowError 单行解析失败，Line 从 1 开始，包含表头行
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("第%d行: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrMalformedRow) 对所有行错误成立
func (e *RowError) Is(target error) bool {
	return target == ErrMalformedRow
}

// Reader 解析 type,client,tx,amount 格式的输入
//
// 字段首尾空白会被去掉；amount 列可以整列缺失（dispute 等记录常见）。
type Reader struct {
	csv        *csv.Reader
	hasHeader  bool
	headerRead bool
}

func NewReader(r io.Reader, hasHeader bool) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &Reader{
		csv:       cr,
		hasHeader: hasHeader,
	}
}

// Next 返回下一条记录
//
// 格式错误返回 *RowError，调用方可以跳过继续读；
// 输入结束返回 io.EOF；其他错误是底层读取失败。
func (r *Reader) Next() (model.Transaction, error) {
	if r.hasHeader && !r.headerRead {
		r.headerRead = true
		if _, err := r.csv.Read(); err != nil {
			if err == io.EOF {
				return model.Transaction{}, io.EOF
			}
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return model.Transaction{}, err
			}
		}
	}

	fields, err := r.csv.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return model.Transaction{}, &RowError{Line: parseErr.Line, Err: parseErr.Err}
		}
		return model.Transaction{}, err
	}

	line, _ := r.csv.FieldPos(0)
	tx, err := parseRecord(fields)
	if err != nil {
		return model.Transaction{}, &RowError{Line: line, Err: err}
	}
	return tx, nil
}

// ReadAll 读完整个输入，遇到第一个错误即返回（batch 模式）
func (r *Reader) ReadAll() ([]model.Transaction, error) {
	var out []model.Transaction
	for {
		tx, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
}

func parseRecord(fields []string) (model.Transaction, error) {
	if len(fields) < 3 || len(fields) > 4 {
		return model.Transaction{}, fmt.Errorf("%w: %d", ErrFieldCount, len(fields))
	}

	txType, ok := model.ParseTxType(fields[0])
	if !ok {
		return model.Transaction{}, fmt.Errorf("%w: %q", ErrUnknownType, strings.TrimSpace(fields[0]))
	}

	client, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 16)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("client 字段无效: %w", err)
	}

	txID, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("tx 字段无效: %w", err)
	}

	raw := ""
	if len(fields) == 4 {
		raw = strings.TrimSpace(fields[3])
	}

	tx := model.Transaction{
		Type:     txType,
		ClientID: uint16(client),
		TxID:     uint32(txID),
	}

	switch {
	case txType.CarriesAmount() && raw == "":
		return model.Transaction{}, ErrMissingAmount
	case !txType.CarriesAmount() && raw != "":
		return model.Transaction{}, ErrUnexpectedAmt
	case raw == "":
		return tx, nil
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("amount 字段无效: %w", err)
	}
	if amount.IsNegative() {
		return model.Transaction{}, ErrNegativeAmount
	}
	// 超出精度的部分直接截断
	tx.Amount = amount.Truncate(model.AmountPrecision)
	return tx, nil
}
