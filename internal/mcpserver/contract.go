package mcpserver

// NoteContract describes how notes look to LLM consumers.
const NoteContract = `# Quill Note Contract

Quill notes are identified by opaque ids (UUIDs), not paths.

- Every note has a title and a rich-text body. Tools accept and return
  the body as plain text; formatting applied in the editor is preserved
  on the stored document and simply not visible through these tools.
- A note created without a title gets "Untitled Note".
- Each note has its own chat transcript, readable via the chat_history
  tool. Transcripts are ordered oldest first.
- list_notes orders by most recently updated. Use search_notes to find
  notes by content, then read_note with the returned id.
`
