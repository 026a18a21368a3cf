package wml

import "github.com/beevik/etree"

// RunPropsOrder is the child sequence of w:rPr.
var RunPropsOrder = []string{
	"rStyle", "rFonts", "b", "bCs", "i", "iCs", "caps", "smallCaps", "strike", "dstrike",
	"outline", "shadow", "emboss", "imprint", "noProof", "snapToGrid", "vanish", "webHidden",
	"color", "spacing", "w", "kern", "position", "sz", "szCs", "highlight", "u", "effect", "bdr",
	"shd", "fitText", "vertAlign", "rtl", "cs", "em", "lang", "eastAsianLayout", "specVanish",
	"oMath", "rPrChange",
}

// ParagraphPropsOrder is the leading part of the w:pPr sequence; pStyle always comes first.
var ParagraphPropsOrder = []string{
	"pStyle", "keepNext", "keepLines", "pageBreakBefore", "framePr", "widowControl", "numPr",
	"suppressLineNumbers", "pBdr", "shd", "tabs", "suppressAutoHyphens", "kinsoku", "wordWrap",
	"overflowPunct", "topLinePunct", "autoSpaceDE", "autoSpaceDN", "bidi", "adjustRightInd",
	"snapToGrid", "spacing", "ind", "contextualSpacing", "mirrorIndents", "suppressOverlap", "jc",
	"textDirection", "textAlignment", "textboxTightWrap", "outlineLvl", "divId", "cnfStyle", "rPr",
	"sectPr", "pPrChange",
}

// SettingsOrder is the child sequence of w:settings.
var SettingsOrder = []string{
	"writeProtection", "view", "zoom", "removePersonalInformation", "removeDateAndTime",
	"doNotDisplayPageBoundaries", "displayBackgroundShape", "printPostScriptOverText",
	"printFractionalCharacterWidth", "printFormsData", "embedTrueTypeFonts", "embedSystemFonts",
	"saveSubsetFonts", "saveFormsData", "mirrorMargins", "alignBordersAndEdges",
	"bordersDoNotSurroundHeader", "bordersDoNotSurroundFooter", "gutterAtTop",
	"hideSpellingErrors", "hideGrammaticalErrors", "activeWritingStyle", "proofState",
	"formsDesign", "attachedTemplate", "linkStyles", "stylePaneFormatFilter",
	"stylePaneSortMethod", "documentType", "mailMerge", "revisionView", "trackRevisions",
	"doNotTrackMoves", "doNotTrackFormatting", "documentProtection", "autoFormatOverride",
	"styleLockTheme", "styleLockQFSet", "defaultTabStop", "autoHyphenation",
	"consecutiveHyphenLimit", "hyphenationZone", "doNotHyphenateCaps", "showEnvelope",
	"summaryLength", "clickAndTypeStyle", "defaultTableStyle", "evenAndOddHeaders",
	"bookFoldRevPrinting", "bookFoldPrinting", "bookFoldPrintingSheets",
	"drawingGridHorizontalSpacing", "drawingGridVerticalSpacing",
	"displayHorizontalDrawingGridEvery", "displayVerticalDrawingGridEvery",
	"doNotUseMarginsForDrawingGridOrigin", "drawingGridHorizontalOrigin",
	"drawingGridVerticalOrigin", "doNotShadeFormData", "noPunctuationKerning",
	"characterSpacingControl", "printTwoOnOne", "strictFirstAndLastChars", "noLineBreaksAfter",
	"noLineBreaksBefore", "savePreviewPicture", "doNotValidateAgainstSchema", "saveInvalidXml",
	"ignoreMixedContent", "alwaysShowPlaceholderText", "doNotDemarcateInvalidXml",
	"saveXmlDataOnly", "useXSLTWhenSaving", "saveThroughXslt", "showXMLTags",
	"alwaysMergeEmptyNamespace", "updateFields", "hdrShapeDefaults", "footnotePr", "endnotePr",
	"compat", "docVars", "rsids", "mathPr", "attachedSchema", "themeFontLang",
	"clrSchemeMapping", "doNotIncludeSubdocsInStats", "doNotAutoCompressPictures",
	"forceUpgrade", "captions", "readModeInkLockDown", "smartTagType", "schemaLibrary",
	"shapeDefaults", "doNotEmbedSmartTags", "decimalSymbol", "listSeparator",
}

// InsertOrdered inserts child into parent before the first existing sibling that the sequence
// places after it. Unknown tags are appended.
func InsertOrdered(parent, child *etree.Element, order []string) {
	rank := make(map[string]int, len(order))
	for i, tag := range order {
		rank[tag] = i
	}
	want, known := rank[child.Tag]
	if known {
		for _, sib := range parent.ChildElements() {
			if r, ok := rank[sib.Tag]; ok && r > want {
				parent.InsertChildAt(sib.Index(), child)
				return
			}
		}
	}
	parent.AddChild(child)
}
