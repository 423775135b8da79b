package mcpserver

// PipelineContract describes the pipeline's stage ordering and document
// semantics for LLM consumers.
const PipelineContract = `# Draftforge Pipeline Contract

Draftforge turns raw project input into three derived documents, one stage
at a time. Each stage is produced by an external processing service and
arrives asynchronously.

## Stages

1. **RAW_INPUT** – the client's original input; created with the project.
2. **REQUIREMENTS** – extracted requirements; input is the RAW_INPUT document.
3. **BRD** – business requirements document; input is the REQUIREMENTS document.
4. **BLUEPRINT** – technical blueprint; input is the BRD document.

DRAFT is a fifth, storage-only type for free-form working documents.

## Rules

1. **Documents are immutable.** A content change creates a new version
   (` + "`1..n`" + `, contiguous per project + type); the previous version stays.
2. **Prerequisites are enforced at dispatch.** A stage can only be
   dispatched when the previous stage's latest document exists.
3. **Completions are matched by (project, stage).** There is no
   per-dispatch token: if the same stage completes twice, the later arrival
   becomes the latest version.
4. **Project status** is one of created, processing, completed, failed.
   ` + "`processing`" + ` means a dispatch was accepted and no completion has
   arrived yet.
5. **Notifications** record each completed stage and are consumed through
   the feed; read/archive state never feeds back into the pipeline.
`
