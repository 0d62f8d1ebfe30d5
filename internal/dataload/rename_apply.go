package dataload

// ApplyRename rebuilds a Table using the observed→canonical mapping
// produced by the rename package, dropping any column named in drop.
func ApplyRename(table Table, renamed map[string]string, drop []string) Table {
	dropSet := make(map[string]bool, len(drop))
	for _, c := range drop {
		dropSet[c] = true
	}

	out := Table{
		Data:    make(map[string][]any, len(table.Columns)),
		NumRows: table.NumRows,
	}

	for _, col := range table.Columns {
		if dropSet[col] {
			continue
		}
		target, ok := renamed[col]
		if !ok {
			target = col
		}
		out.Columns = append(out.Columns, target)
		out.Data[target] = table.Data[col]
	}

	return out
}
