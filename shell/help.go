package shell

import (
	"fmt"
	"io"
)

const helpText = `      +------------------------------------------------------------------+
      |                      treefs --- File Manager                     |
      +-------------------------+----------------------------------------+
      |     [COMMAND]           |   [FUNCTION]                           |
      +-------------------------+----------------------------------------+
      |     $ mkf <filename>    |   create a new file                    |
      |     $ mkdir <dirname>   |   create a new directory               |
      |     $ ls                |   list the elements in this level      |
      |     $ cd <dirname>      |   change directory to <dirname>        |
      |     $ cd ..             |   return to the superior directory     |
      |     $ cd /              |   return to the root directory         |
      |     $ rm <name>         |   delete a file or directory           |
      |     $ cat <filename>    |   print the content of a file          |
      |     $ write <file> <t>  |   replace the content of a file        |
      |     $ find <name>       |   show the id of an element            |
      |     $ pwd               |   print the current directory          |
      |     $ sv                |   save the file system to disk         |
      |     $ ld                |   load the file system from disk       |
      |     $ help              |   show command list of this system     |
      |     $ clear             |   clear the cmd                        |
      |     $ quit              |   quit the File Manager                |
      +-------------------------+----------------------------------------+
`

func printHelp(out io.Writer) {
	fmt.Fprint(out, helpText)
}
