// Package redline applies proposed text corrections to Word documents as visible markup or as
// native tracked changes, and to PDF documents as positioned highlights.
//
// Basic Usage:
//
//	changes, err := redline.LoadChanges("changes.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	config := redline.DefaultConfig()
//	config.Mode = redline.ModeTracked
//	config.IncludeComments = true
//
//	editor, err := redline.NewEditor(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := editor.Apply(ctx, "report.docx", changes)
//	if err != nil {
//	    log.Fatal(err) // the document itself could not be processed
//	}
//	for _, o := range result.Unresolved() {
//	    fmt.Println(o.Index, o.Status, o.Reason)
//	}
//
// A change record names the unit it targets by the identifiers that Extract reports
// (paragraph_3, table_1_cell_2_1, header_1, footnote_2, ...). Each record is located in its unit,
// diffed word by word against its replacement and rendered into the unit's runs. In tracked mode
// the markup is then converted into w:ins and w:del revisions, and the package is validated and
// repaired. When a stage fails, the next strategy of the chain is tried: native revisions, plain
// markup, then comments only.
package redline
